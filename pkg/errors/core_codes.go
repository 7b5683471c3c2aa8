package errors

import "google.golang.org/grpc/codes"

// Ingest core errors (service 20): chunker, embedding fusion, extractor.
var (
	// ErrUnsupportedContentType rejects items whose content type no
	// chunking strategy recognizes. The item is skipped, not retried.
	ErrUnsupportedContentType = Register(New(MakeCode(ServiceIngest, CategoryRequest, 1), 400, codes.InvalidArgument, "Unsupported content type", "不支持的内容类型"))

	// ErrChunkPersistFailed indicates the transactional chunk write failed.
	ErrChunkPersistFailed = Register(New(MakeCode(ServiceIngest, CategoryDatabase, 1), 500, codes.Internal, "Chunk persistence failed", "分块持久化失败"))

	// ErrChunkNotFound indicates a chunk id missing from the durable store.
	ErrChunkNotFound = Register(New(MakeCode(ServiceIngest, CategoryResource, 1), 404, codes.NotFound, "Chunk not found", "分块不存在"))

	// ErrFusionDimMismatch indicates per-model vectors of unequal dimension
	// reached a fusion strategy that requires identical dimensions.
	ErrFusionDimMismatch = Register(New(MakeCode(ServiceIngest, CategoryInternal, 1), 500, codes.Internal, "Fusion dimension mismatch", "融合维度不匹配"))

	// ErrInvalidFusionWeights indicates a weighted-sum weight vector whose
	// length does not match the input count. Configuration bug, fatal.
	ErrInvalidFusionWeights = Register(New(MakeCode(ServiceIngest, CategoryConfig, 1), 500, codes.Internal, "Invalid fusion weights", "融合权重无效"))

	// ErrEmbeddingFailed indicates all active models failed for a batch.
	ErrEmbeddingFailed = Register(New(MakeCode(ServiceIngest, CategoryInternal, 2), 500, codes.Internal, "Embedding generation failed", "向量生成失败"))

	// ErrGraphPersistFailed indicates the extractor could not persist a
	// whole batch of entities or evidence.
	ErrGraphPersistFailed = Register(New(MakeCode(ServiceIngest, CategoryDatabase, 2), 500, codes.Internal, "Graph persistence failed", "图谱持久化失败"))

	// ErrSourceNotFound indicates an unknown source item id.
	ErrSourceNotFound = Register(New(MakeCode(ServiceIngest, CategoryResource, 2), 404, codes.NotFound, "Source item not found", "源文档不存在"))
)

// Vector store errors (service 12).
var (
	// ErrDimensionMismatch rejects upserts or queries whose vector length
	// differs from the collection dimension. Configuration bug, fatal.
	ErrDimensionMismatch = Register(New(MakeCode(ServiceInfraVector, CategoryRequest, 1), 500, codes.InvalidArgument, "Vector dimension mismatch", "向量维度不匹配"))

	// ErrVectorStore wraps backend vector store failures.
	ErrVectorStore = Register(New(MakeCode(ServiceInfraVector, CategoryInternal, 1), 500, codes.Internal, "Vector store error", "向量存储错误"))
)

// Graph store errors (service 13).
var (
	// ErrGraphStore wraps backend graph store failures.
	ErrGraphStore = Register(New(MakeCode(ServiceInfraGraph, CategoryInternal, 1), 500, codes.Internal, "Graph store error", "图存储错误"))
)

// Query core errors (service 21).
var (
	// ErrInvalidQuery rejects queries failing length or format checks.
	ErrInvalidQuery = Register(New(MakeCode(ServiceQuery, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid query", "查询无效"))

	// ErrEmptyPlan indicates the planner produced no executable steps.
	// The response carries empty context with confidence zero.
	ErrEmptyPlan = Register(New(MakeCode(ServiceQuery, CategoryRequest, 2), 422, codes.FailedPrecondition, "Empty retrieval plan", "检索计划为空"))

	// ErrStepDeadlineExceeded indicates a plan step hit its per-step
	// deadline. Recorded in diagnostics; the plan continues.
	ErrStepDeadlineExceeded = Register(New(MakeCode(ServiceQuery, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Retrieval step deadline exceeded", "检索步骤超时"))

	// ErrQueryDeadlineExceeded indicates the whole query deadline expired.
	ErrQueryDeadlineExceeded = Register(New(MakeCode(ServiceQuery, CategoryTimeout, 2), 504, codes.DeadlineExceeded, "Query deadline exceeded", "查询超时"))

	// ErrRetrievalFailed indicates every step of the plan failed.
	ErrRetrievalFailed = Register(New(MakeCode(ServiceQuery, CategoryInternal, 1), 500, codes.Internal, "Retrieval failed", "检索失败"))
)
