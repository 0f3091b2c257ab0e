package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PhiFever/idbadge-scanner/internal/imageproc"
	"github.com/PhiFever/idbadge-scanner/internal/recognizer"
	"github.com/PhiFever/idbadge-scanner/internal/scanner"
	"github.com/PhiFever/idbadge-scanner/internal/store"
	"github.com/PhiFever/idbadge-scanner/pkg/version"
)

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
		"ocr":     recognizer.Available,
	})
}

func (s *Server) areasHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"areas": s.areas})
}

func (s *Server) knownArea(area string) bool {
	for _, a := range s.areas {
		if a == area {
			return true
		}
	}
	return false
}

// createScanHandler scans an uploaded photo (multipart fields "image" and "area")
func (s *Server) createScanHandler(c *gin.Context) {
	if s.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	}

	area := c.PostForm("area")
	if area == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": scanner.UserMessage(scanner.ErrNoScanArea)})
		return
	}
	if !s.knownArea(area) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scan area", "areas": s.areas})
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image file"})
		return
	}
	defer f.Close()

	rec, err := s.pipeline.ProcessReader(c.Request.Context(), f, area, scanner.SourceUpload)
	if err != nil {
		s.scanError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) scanError(c *gin.Context, err error) {
	body := gin.H{"error": scanner.UserMessage(err)}

	var incomplete *scanner.IncompleteExtractionError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scanner.ErrNoScanArea),
		errors.Is(err, imageproc.ErrImageDecode),
		errors.Is(err, imageproc.ErrImageAccess):
		status = http.StatusBadRequest
	case errors.Is(err, scanner.ErrBusy),
		errors.Is(err, recognizer.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, recognizer.ErrEmptyResult):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &incomplete):
		status = http.StatusUnprocessableEntity
		body["missing"] = incomplete.Missing
		body["partial"] = incomplete.Result.Fields()
	}
	c.JSON(status, body)
}

func (s *Server) query(c *gin.Context) (store.Query, bool) {
	q, err := store.ParseRange(c.Query("start"), c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return store.Query{}, false
	}
	return q, true
}

// listScansHandler returns history newest first (query: start, end, area)
func (s *Server) listScansHandler(c *gin.Context) {
	q, ok := s.query(c)
	if !ok {
		return
	}
	recs, err := s.store.Load(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	recs = store.FilterByArea(recs, c.Query("area"))
	c.JSON(http.StatusOK, gin.H{"records": recs, "count": len(recs)})
}

// summaryHandler returns totals, the last scan and counts per area
func (s *Server) summaryHandler(c *gin.Context) {
	q, ok := s.query(c)
	if !ok {
		return
	}
	recs, err := s.store.Load(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, store.Summarize(store.FilterByArea(recs, c.Query("area"))))
}
