package model

import "strings"

// ContentType tags the payload format of a SourceItem. Code payloads carry
// their language as a suffix, e.g. "text/code:rust".
type ContentType string

const (
	ContentTypePlain    ContentType = "text/plain"
	ContentTypeMarkdown ContentType = "text/markdown"
	ContentTypeHTML     ContentType = "application/html"
	ContentTypePDFText  ContentType = "application/pdf-text"
	ContentTypeChat     ContentType = "chat/transcript"

	// contentTypeCodePrefix prefixes code content types; the remainder is
	// the lowercase language tag.
	contentTypeCodePrefix = "text/code:"
)

// ContentTypeCode builds the code content type for a language tag.
func ContentTypeCode(language string) ContentType {
	return ContentType(contentTypeCodePrefix + strings.ToLower(language))
}

// IsCode reports whether the content type is a code payload.
func (ct ContentType) IsCode() bool {
	return strings.HasPrefix(string(ct), contentTypeCodePrefix)
}

// Language returns the language tag of a code content type, or empty.
func (ct ContentType) Language() string {
	if !ct.IsCode() {
		return ""
	}
	return strings.TrimPrefix(string(ct), contentTypeCodePrefix)
}

// Valid reports whether the content type is one the chunker recognizes.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTypePlain, ContentTypeMarkdown, ContentTypeHTML, ContentTypePDFText, ContentTypeChat:
		return true
	}
	return ct.IsCode() && ct.Language() != ""
}

// SourceItem is an ingested document. Items are created by ingestion
// collaborators and immutable afterwards; every chunk derives from exactly
// one item.
type SourceItem struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	ContentType ContentType    `json:"content_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Profile returns the embedding routing profile for this item. The profile
// derives from the content type; an explicit "profile" metadata annotation
// overrides the derivation.
func (s *SourceItem) Profile() string {
	if s.Metadata != nil {
		if p, ok := s.Metadata["profile"].(string); ok && p != "" {
			return p
		}
	}
	switch {
	case s.ContentType.IsCode():
		return ProfileCode
	case s.ContentType == ContentTypeChat:
		return ProfileChat
	case s.ContentType == ContentTypePDFText:
		return ProfilePDF
	default:
		return ProfileProse
	}
}

// Embedding routing profiles.
const (
	ProfileCode  = "code"
	ProfileProse = "prose"
	ProfileChat  = "chat"
	ProfilePDF   = "pdf"
	ProfileQuery = "query"
)
