package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

// Extraction confidences by method. Declarations parsed from code rank
// highest, free-text concept mentions lowest.
const (
	confDeclaration = 0.95
	confImplements  = 0.95
	confContains    = 0.9
	confImports     = 0.85
	confReferences  = 0.8
	confCalls       = 0.7
	confMentions    = 0.6
)

var (
	funcDeclRe = regexp.MustCompile(`\b(?:pub(?:\(\w+\))?\s+)?(?:async\s+)?(?:func|fn|def)\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)`)
	typeDeclRe = regexp.MustCompile(`(?m)^\s*(?:pub(?:\(\w+\))?\s+)?(?:export\s+)?(?:abstract\s+)?(?:class|struct|trait|enum|interface)\s+([A-Za-z_]\w*)|^\s*type\s+([A-Za-z_]\w*)\s+(?:struct|interface)`)
	implRe     = regexp.MustCompile(`(?m)^\s*impl(?:<[^>]*>)?\s+([A-Za-z_][\w:]*)(?:<[^>]*>)?\s+for\s+([A-Za-z_][\w:]*)`)
	importRe   = regexp.MustCompile(`(?m)^\s*(?:import\s+(?:[\w.{}*,\s]+\s+from\s+)?["']?([\w./@-]+)["']?|use\s+([\w:]+)|from\s+([\w.]+)\s+import|import\s+\(?\s*"([\w./-]+)")`)
	routeRe    = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH)\s+(/[\w/:{}.~-]*)`)
	ticketRe   = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9}-\d+)\b`)
	prRefRe    = regexp.MustCompile(`(?:\bPR-(\d+)\b|(?:^|[\s(])#(\d+)\b)`)
	conceptRe  = regexp.MustCompile(`\b([A-Z][a-z]+(?:[A-Z][a-z0-9]+)+|[a-z]+(?:_[a-z0-9]+)+|[a-z]\w*(?:\.[a-z]\w*)+)\b`)
)

// candidate is an entity observed in one chunk, before persistence.
type candidate struct {
	entity     model.Entity
	confidence float64
	method     string
}

// relation is an edge between two in-chunk candidates, addressed by
// normalized name until ids are assigned.
type relation struct {
	fromKey    string
	toKey      string
	relType    model.RelationshipType
	confidence float64
}

// chunkExtraction is everything mined from one chunk.
type chunkExtraction struct {
	entities  []candidate
	relations []relation

	// declaredFuncs are function names declared here, for batch-level
	// call-edge resolution.
	declaredFuncs []string
	// primaryKey is the first declared entity, the subject of reference
	// and mention edges.
	primaryKey string
}

// extractChunk mines one chunk's text for entities and in-chunk relations.
func extractChunk(text model.ChunkText, serviceName string) *chunkExtraction {
	ex := &chunkExtraction{}
	lang := text.Language
	seen := map[string]bool{}

	add := func(et model.EntityType, name string, conf float64, method string) string {
		norm := normalizeName(name)
		key := string(et) + ":" + norm
		if norm == "" || seen[key] {
			return key
		}
		seen[key] = true
		ex.entities = append(ex.entities, candidate{
			entity: model.Entity{
				EntityType:     et,
				CanonicalName:  name,
				NormalizedName: norm,
				Language:       entityLanguage(et, lang),
				ServiceName:    serviceName,
			},
			confidence: conf,
			method:     method,
		})
		if ex.primaryKey == "" && (et == model.EntityTypeFunction || et == model.EntityTypeClass) {
			ex.primaryKey = key
		}
		return key
	}

	isCode := text.BlockType == model.BlockTypeCode ||
		text.BlockType == model.BlockTypeFunction ||
		text.BlockType == model.BlockTypeClass

	if isCode {
		type located struct {
			key string
			pos int
		}
		var funcs, constructs []located

		for _, m := range funcDeclRe.FindAllStringSubmatchIndex(text.Content, -1) {
			name := text.Content[m[2]:m[3]]
			key := add(model.EntityTypeFunction, name, confDeclaration, "declaration")
			ex.declaredFuncs = append(ex.declaredFuncs, name)
			funcs = append(funcs, located{key: key, pos: m[0]})
		}
		for _, m := range typeDeclRe.FindAllStringSubmatchIndex(text.Content, -1) {
			name := submatch(text.Content, m, 1)
			if name == "" {
				name = submatch(text.Content, m, 2)
			}
			key := add(model.EntityTypeClass, name, confDeclaration, "declaration")
			constructs = append(constructs, located{key: key, pos: m[0]})
		}
		for _, m := range implRe.FindAllStringSubmatchIndex(text.Content, -1) {
			traitKey := add(model.EntityTypeClass, submatch(text.Content, m, 1), confDeclaration, "declaration")
			typeKey := add(model.EntityTypeClass, submatch(text.Content, m, 2), confDeclaration, "declaration")
			ex.relations = append(ex.relations, relation{
				fromKey: typeKey, toKey: traitKey,
				relType: model.RelImplements, confidence: confImplements,
			})
			if ex.primaryKey == "" {
				ex.primaryKey = typeKey
			}
			constructs = append(constructs, located{key: typeKey, pos: m[0]})
		}
		sort.Slice(constructs, func(i, j int) bool { return constructs[i].pos < constructs[j].pos })

		// A function belongs to the nearest type or impl opening before its
		// declaration; class chunks claim leading functions too.
		for _, f := range funcs {
			owner := ""
			for _, c := range constructs {
				if c.pos <= f.pos {
					owner = c.key
				}
			}
			if owner == "" && len(constructs) > 0 && text.BlockType == model.BlockTypeClass {
				owner = constructs[0].key
			}
			if owner == "" || owner == f.key {
				continue
			}
			ex.relations = append(ex.relations, relation{
				fromKey:    owner,
				toKey:      f.key,
				relType:    model.RelContains,
				confidence: confContains,
			})
		}
		for _, m := range importRe.FindAllStringSubmatch(text.Content, -1) {
			name := firstNonEmpty(m[1:])
			key := add(model.EntityTypeModule, name, confImports, "import")
			if ex.primaryKey != "" {
				ex.relations = append(ex.relations, relation{
					fromKey: ex.primaryKey, toKey: key,
					relType: model.RelImports, confidence: confImports,
				})
			}
		}
	}

	for _, m := range routeRe.FindAllStringSubmatch(text.Content, -1) {
		add(model.EntityTypeAPIEndpoint, m[1]+" "+m[2], confDeclaration, "route")
	}
	for _, m := range ticketRe.FindAllStringSubmatch(text.Content, -1) {
		if strings.HasPrefix(m[1], "PR-") {
			continue
		}
		key := add(model.EntityTypeIssue, m[1], confReferences, "reference")
		if ex.primaryKey != "" {
			ex.relations = append(ex.relations, relation{
				fromKey: ex.primaryKey, toKey: key,
				relType: model.RelReferences, confidence: confReferences,
			})
		}
	}
	for _, m := range prRefRe.FindAllStringSubmatch(text.Content, -1) {
		num := firstNonEmpty(m[1:])
		key := add(model.EntityTypePullRequest, "PR-"+num, confReferences, "reference")
		if ex.primaryKey != "" {
			ex.relations = append(ex.relations, relation{
				fromKey: ex.primaryKey, toKey: key,
				relType: model.RelReferences, confidence: confReferences,
			})
		}
	}

	if !isCode {
		for _, m := range conceptRe.FindAllStringSubmatch(text.Content, -1) {
			key := add(model.EntityTypeConcept, m[1], confMentions, "mention")
			if ex.primaryKey != "" && key != ex.primaryKey {
				ex.relations = append(ex.relations, relation{
					fromKey: ex.primaryKey, toKey: key,
					relType: model.RelMentions, confidence: confMentions,
				})
			}
		}
	}

	return ex
}

// normalizeName lowercases, strips generic parameters, and trims paths so
// lookups converge on one canonical spelling.
func normalizeName(name string) string {
	s := strings.TrimSpace(name)
	if i := strings.IndexAny(s, "<("); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}

// entityLanguage keeps language on code-shaped entities only; issues,
// endpoints, and concepts are language-neutral.
func entityLanguage(et model.EntityType, lang string) string {
	switch et {
	case model.EntityTypeFunction, model.EntityTypeClass, model.EntityTypeModule:
		return lang
	}
	return ""
}

// submatch extracts one capture group from a FindAllStringSubmatchIndex
// match, empty when the group did not participate.
func submatch(s string, idx []int, group int) string {
	if idx[2*group] < 0 {
		return ""
	}
	return s[idx[2*group]:idx[2*group+1]]
}

func firstNonEmpty(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
