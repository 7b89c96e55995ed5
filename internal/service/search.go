package service

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
	snippetLength      = 160
)

type SearchResult struct {
	Type      string `json:"type"`
	ID        uint   `json:"id"`
	ProjectID uint   `json:"project_id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

type SearchService struct {
	db *gorm.DB
}

func NewSearchService(db *gorm.DB) *SearchService {
	return &SearchService{db: db}
}

// searchBranch is one SELECT of the union. Its arguments are one pattern per
// searched column, the project filter twice, then the include-archived flag.
const searchBranch = `
SELECT '%[1]s' AS type, t.id AS id, %[2]s AS project_id, %[3]s AS title, %[4]s AS snippet
FROM %[5]s
JOIN projects p ON p.id = %[2]s
WHERE (%[6]s)
  AND (? = 0 OR p.id = ?)
  AND (? = 1 OR p.status <> 'archived')`

type searchSource struct {
	typ, projectCol, titleCol, snippetCol, from string
	columns                                     []string
}

var searchSources = []searchSource{
	{"project", "t.id", "t.name", "t.description", "projects t",
		[]string{"t.name", "t.description"}},
	{"requirement", "t.project_id", "t.code || ' ' || t.title", "t.description", "requirements t",
		[]string{"t.code", "t.title", "t.description"}},
	{"task", "r.project_id", "t.title", "t.description", "implementation_tasks t JOIN requirements r ON r.id = t.requirement_id",
		[]string{"t.title", "t.description"}},
	{"input_data", "t.project_id", "t.name", "t.extracted_text", "input_data t",
		[]string{"t.name", "t.extracted_text"}},
}

var searchSQL = buildSearchSQL()

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern builds a lowercase LIKE pattern matching q literally. The
// clause using it needs likeEscape.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

const likeEscape = ` ESCAPE '\'`

func buildSearchSQL() string {
	branches := make([]string, 0, len(searchSources))
	for _, src := range searchSources {
		conds := make([]string, len(src.columns))
		for i, c := range src.columns {
			conds[i] = fmt.Sprintf("LOWER(COALESCE(%s, '')) LIKE ?"+likeEscape, c)
		}
		branches = append(branches, fmt.Sprintf(searchBranch, src.typ, src.projectCol, src.titleCol,
			src.snippetCol, src.from, strings.Join(conds, " OR ")))
	}
	return strings.Join(branches, "\nUNION ALL") + "\nORDER BY type, id\nLIMIT ?"
}

// Search does a case-insensitive substring match across projects,
// requirements, tasks and input data. Non-admin callers never see rows of
// archived projects.
func (s *SearchService) Search(q string, projectID uint, limit int, includeArchived bool) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("40001:search query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	pattern := containsPattern(q)
	archived := 0
	if includeArchived {
		archived = 1
	}

	var args []interface{}
	for _, src := range searchSources {
		for range src.columns {
			args = append(args, pattern)
		}
		args = append(args, projectID, projectID, archived)
	}
	args = append(args, limit)

	var rows []SearchResult
	if err := s.db.Raw(searchSQL, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Snippet = snippet(rows[i].Snippet, q)
	}
	return rows, nil
}

// snippet trims text to a window around the first match.
func snippet(text, q string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= snippetLength {
		return text
	}
	start := strings.Index(strings.ToLower(text), strings.ToLower(q)) - snippetLength/4
	if start < 0 {
		start = 0
	}
	end := start + snippetLength
	if end > len(text) {
		end = len(text)
		start = end - snippetLength
	}
	for start > 0 && !utf8RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8RuneStart(text[end]) {
		end++
	}
	out := text[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
