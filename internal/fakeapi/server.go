// Package fakeapi is an in-memory implementation of the document API used by
// client and end-to-end tests.
package fakeapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"neoflow/internal/domain"
)

// Call records one request received by the server.
type Call struct {
	Method string
	Route  string
	Path   string
	Query  string
	Auth   string
}

// Upload records one received upload.
type Upload struct {
	DocumentID  string
	FileName    string
	ContentType string
	TemplateID  string
	Size        int64
}

// Merge records one process-merge request.
type Merge struct {
	TemplateID string
	Files      []domain.MergeFile
	DocumentID string
}

type failure struct {
	status int
	detail string
	count  int
}

// Server holds documents in memory and serves the HTTP contract.
type Server struct {
	mu        sync.Mutex
	engine    *gin.Engine
	docs      map[string]*domain.Document
	files     map[string][]byte
	results   map[string]*domain.ExtractionResult
	scripts   map[string][]domain.DocumentStatus
	outcomes  map[string]domain.ProcessResponse
	failures  map[string]*failure
	templates []domain.Template
	rules     []domain.MergeRule
	calls     []Call
	uploads   []Upload
	merges    []Merge
	token     string
	now       func() time.Time
}

// New creates an empty Server.
func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		docs:     make(map[string]*domain.Document),
		files:    make(map[string][]byte),
		results:  make(map[string]*domain.ExtractionResult),
		scripts:  make(map[string][]domain.DocumentStatus),
		outcomes: make(map[string]domain.ProcessResponse),
		failures: make(map[string]*failure),
		now:      func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) },
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.record(), s.inject(), s.auth())

	docs := r.Group("/documents")
	docs.POST("/upload", s.upload)
	docs.POST("/process-merge", s.processMerge)
	docs.GET("/", s.list)
	docs.POST("/:id/process", s.process)
	docs.GET("/:id/status", s.status)
	docs.GET("/:id/result", s.result)
	docs.GET("/:id/download", s.download)
	docs.DELETE("/:id", s.remove)
	docs.PUT("/:id/validate", s.validate)
	docs.PUT("/:id/reject", s.reject)
	docs.PUT("/:id/rename", s.rename)

	r.GET("/tenants/me/templates", func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.JSON(http.StatusOK, s.templates)
	})
	r.GET("/tenants/me/merge-rules", func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.JSON(http.StatusOK, s.rules)
	})
	return r
}

// RequireToken makes every request without "Bearer <token>" fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Fail makes the next count requests to method+route fail with status.
// route is the gin pattern, e.g. "/documents/:id".
func (s *Server) Fail(method, route string, status int, detail string, count int) {
	s.mu.Lock()
	s.failures[method+" "+route] = &failure{status: status, detail: detail, count: count}
	s.mu.Unlock()
}

// Seed inserts a document.
func (s *Server) Seed(doc domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := doc
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().Add(time.Duration(len(s.docs)) * time.Second)
	}
	d.UpdatedAt = d.CreatedAt
	s.docs[d.ID] = &d
}

// SeedResult stores an extraction result.
func (s *Server) SeedResult(res domain.ExtractionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := res
	s.results[r.DocumentID] = &r
}

// SetTemplates replaces the tenant templates and merge rules.
func (s *Server) SetTemplates(templates []domain.Template, rules []domain.MergeRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = templates
	s.rules = rules
}

// ScriptStatus makes successive status polls of id report statuses in order.
// The last status sticks.
func (s *Server) ScriptStatus(id string, statuses ...domain.DocumentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[id] = statuses
}

// SetProcessOutcome fixes the response of a synchronous process call for id.
func (s *Server) SetProcessOutcome(id string, resp domain.ProcessResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[id] = resp
}

// Calls returns every recorded request.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls counts recorded requests to method+route.
func (s *Server) CountCalls(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method && c.Route == route {
			n++
		}
	}
	return n
}

// Uploads returns every recorded upload.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Merges returns every recorded process-merge request.
func (s *Server) Merges() []Merge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Merge(nil), s.merges...)
}

// Document returns a copy of the stored document.
func (s *Server) Document(id string) (domain.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return domain.Document{}, false
	}
	return *d, true
}

func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: c.Request.Method,
			Route:  c.FullPath(),
			Path:   c.Request.URL.Path,
			Query:  c.Request.URL.RawQuery,
			Auth:   c.GetHeader("Authorization"),
		})
		s.mu.Unlock()
		c.Next()
	}
}

func (s *Server) inject() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		f, ok := s.failures[c.Request.Method+" "+c.FullPath()]
		if ok && f.count > 0 {
			f.count--
			s.mu.Unlock()
			c.AbortWithStatusJSON(f.status, gin.H{"detail": f.detail})
			return
		}
		s.mu.Unlock()
		c.Next()
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token != "" && c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "token expired"})
			return
		}
		c.Next()
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": "文档不存在"})
}

func (s *Server) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	name := fh.Filename
	contentType := fh.Header.Get("Content-Type")
	size := int64(len(content))
	created := s.now().Add(time.Duration(len(s.docs)) * time.Second)
	doc := &domain.Document{
		ID:               id,
		Status:           domain.StatusUploaded,
		OriginalFileName: &name,
		FileName:         id + "_" + name,
		FilePath:         "uploads/" + id + "_" + name,
		FileSize:         &size,
		MimeType:         &contentType,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	s.docs[id] = doc
	s.files[id] = content
	s.uploads = append(s.uploads, Upload{
		DocumentID:  id,
		FileName:    name,
		ContentType: contentType,
		TemplateID:  c.PostForm("template_id"),
		Size:        size,
	})
	c.JSON(http.StatusOK, domain.UploadResponse{
		DocumentID: id,
		FilePath:   doc.FilePath,
		FileName:   doc.FileName,
		FileSize:   size,
		Status:     string(domain.StatusUploaded),
		Message:    "文件上传成功",
		CreatedAt:  created,
	})
}

func (s *Server) process(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	doc, ok := s.docs[id]
	if !ok {
		notFound(c)
		return
	}
	sync := c.Query("sync") == "true"
	if !sync {
		doc.Status = domain.StatusProcessing
		doc.ErrorMessage = nil
		c.JSON(http.StatusOK, domain.ProcessResponse{DocumentID: id, Status: domain.StatusProcessing, Message: "处理已开始"})
		return
	}

	if out, ok := s.outcomes[id]; ok {
		doc.Status = out.Status
		if out.ErrorMessage != "" {
			msg := out.ErrorMessage
			doc.ErrorMessage = &msg
		}
		out.DocumentID = id
		c.JSON(http.StatusOK, out)
		return
	}

	doc.Status = domain.StatusPendingReview
	processed := s.now()
	doc.ProcessedAt = &processed
	if _, ok := s.results[id]; !ok {
		s.results[id] = &domain.ExtractionResult{
			DocumentID:     id,
			DocumentType:   "检测报告",
			ExtractionData: map[string]any{"sample_name": "LED"},
		}
	}
	c.JSON(http.StatusOK, domain.ProcessResponse{
		DocumentID:     id,
		Status:         domain.StatusPendingReview,
		Message:        "处理完成",
		DocumentType:   s.results[id].DocumentType,
		ExtractionData: s.results[id].ExtractionData,
	})
}

func (s *Server) processMerge(c *gin.Context) {
	var req struct {
		TemplateID string             `json:"template_id"`
		Files      []domain.MergeFile `json:"files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "请提供至少一个文件"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	created := s.now()
	s.docs[id] = &domain.Document{ID: id, Status: domain.StatusPendingReview, CreatedAt: created, UpdatedAt: created}
	s.merges = append(s.merges, Merge{TemplateID: req.TemplateID, Files: req.Files, DocumentID: id})
	c.JSON(http.StatusOK, domain.ProcessResponse{DocumentID: id, Status: domain.StatusPendingReview, Message: "合并处理完成"})
}

func (s *Server) status(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	doc, ok := s.docs[id]
	if !ok {
		notFound(c)
		return
	}
	if script := s.scripts[id]; len(script) > 0 {
		doc.Status = script[0]
		if len(script) > 1 {
			s.scripts[id] = script[1:]
		}
	}
	c.JSON(http.StatusOK, domain.StatusSnapshot{
		DocumentID:       doc.ID,
		Status:           doc.Status,
		DocumentType:     doc.DocumentType,
		DisplayName:      doc.DisplayName,
		OriginalFileName: doc.OriginalFileName,
		ErrorMessage:     doc.ErrorMessage,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		ProcessedAt:      doc.ProcessedAt,
	})
}

func (s *Server) result(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "提取结果不存在"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) download(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	doc, ok := s.docs[id]
	if !ok {
		notFound(c)
		return
	}
	name := doc.Name()
	contentType := "application/octet-stream"
	if doc.MimeType != nil {
		contentType = *doc.MimeType
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	c.Data(http.StatusOK, contentType, s.files[id])
}

func (s *Server) list(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	status := domain.DocumentStatus(c.Query("status"))
	docType := c.Query("document_type")

	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.Document
	for _, d := range s.docs {
		if status != "" && d.Status != status {
			continue
		}
		if docType != "" && (d.DocumentType == nil || *d.DocumentType != docType) {
			continue
		}
		matched = append(matched, *d)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	c.JSON(http.StatusOK, domain.DocumentList{
		Items:   append([]domain.Document{}, matched[start:end]...),
		Total:   len(matched),
		Page:    page,
		Limit:   limit,
		HasMore: end < len(matched),
	})
}

func (s *Server) remove(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.docs[id]; !ok {
		notFound(c)
		return
	}
	delete(s.docs, id)
	delete(s.results, id)
	delete(s.files, id)
	c.JSON(http.StatusOK, domain.DeleteResponse{DocumentID: id, Message: "文档已删除"})
}

func (s *Server) validate(c *gin.Context) {
	var req struct {
		DocumentType    string         `json:"document_type"`
		Data            map[string]any `json:"data"`
		ValidationNotes string         `json:"validation_notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	doc, ok := s.docs[id]
	if !ok {
		notFound(c)
		return
	}
	doc.Status = domain.StatusCompleted
	docType := req.DocumentType
	doc.DocumentType = &docType
	s.results[id] = &domain.ExtractionResult{
		DocumentID:     id,
		DocumentType:   req.DocumentType,
		ExtractionData: req.Data,
		IsValidated:    true,
	}
	c.JSON(http.StatusOK, domain.ActionResponse{Success: true, Message: "审核通过"})
}

func (s *Server) reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "请填写拒绝原因"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[c.Param("id")]
	if !ok {
		notFound(c)
		return
	}
	doc.Status = domain.StatusFailed
	reason := req.Reason
	doc.ErrorMessage = &reason
	c.JSON(http.StatusOK, domain.ActionResponse{Success: true, Message: "已拒绝"})
}

func (s *Server) rename(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DisplayName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "名称不能为空"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[c.Param("id")]
	if !ok {
		notFound(c)
		return
	}
	name := req.DisplayName
	doc.DisplayName = &name
	c.JSON(http.StatusOK, domain.ActionResponse{Success: true, Message: "重命名成功", DisplayName: name})
}
