package server

import (
	"encoding/json"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"worker-preprocess/config"
	"worker-preprocess/constant"
	"worker-preprocess/dto"
	"worker-preprocess/entities"
	"worker-preprocess/pkg/locator"
	"worker-preprocess/pkg/objectstore"
	"worker-preprocess/pkg/rabbitmq"
	"worker-preprocess/repository"
)

// intake accepts submissions, persists the ledger row and publishes the
// submission event. The row is committed before the event goes out so a
// consumer reading the event can always find it. Rejections never reach the
// pipeline. Authentication and malware scanning live in front of this
// service.
type intake struct {
	cfg       *config.Config
	repo      repository.JobLedger
	store     objectstore.Store
	publisher rabbitmq.Publisher
}

func newIntake(cfg *config.Config, repo repository.JobLedger, store objectstore.Store, publisher rabbitmq.Publisher) *intake {
	return &intake{
		cfg:       cfg,
		repo:      repo,
		store:     store,
		publisher: publisher,
	}
}

func (i *intake) register(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.POST("/submit", i.submit)
	v1.GET("/result/:job_id", i.result)
}

type submitRequest struct {
	SourceLocator string `json:"source_locator" binding:"required"`
	ContentType   string `json:"content_type"`
	Metadata      struct {
		FileName      string `json:"file_name"`
		FileSizeBytes int64  `json:"file_size_bytes"`
	} `json:"metadata"`
}

func (i *intake) submit(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := uuid.NewString()
	job := &entities.Job{
		JobID:  jobID,
		Status: constant.JobStatusSubmitted,
	}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
			return
		}
		if fileHeader.Size > i.cfg.Pipeline.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if !acceptableContentType(contentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_content_type"})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
			return
		}
		defer f.Close()

		fileName := filepath.Base(fileHeader.Filename)
		key := path.Join("raw", jobID, fileName)
		loc, err := i.store.PutStream(ctx, f, fileHeader.Size, i.cfg.MinIOBucket, key, contentType)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("failed to store upload")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
			return
		}

		size := fileHeader.Size
		kind := strings.SplitN(contentType, "/", 2)[0]
		job.SourceLocator = &loc
		job.FileName = &fileName
		job.FileSizeBytes = &size
		job.ContentType = &kind
	} else {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source_locator_required"})
			return
		}
		if _, _, err := locator.Parse(req.SourceLocator); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_source_locator"})
			return
		}
		job.SourceLocator = &req.SourceLocator
		if req.ContentType != "" {
			job.ContentType = &req.ContentType
		}
		if req.Metadata.FileName != "" {
			job.FileName = &req.Metadata.FileName
		}
		if req.Metadata.FileSizeBytes > 0 {
			job.FileSizeBytes = &req.Metadata.FileSizeBytes
		}
	}

	if err := i.repo.Create(c.Request.Context(), job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("failed to create job row")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger_write_failed"})
		return
	}

	// Row is committed; now the event may become visible.
	submission := dto.SubmissionMessage{
		JobID:         jobID,
		SourceLocator: *job.SourceLocator,
	}
	if err := i.publisher.Publish(ctx, i.cfg.Bus.TopicSubmitted, jobID, submission); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Msg("failed to publish submission event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish_failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (i *intake) result(c *gin.Context) {
	job, err := i.repo.FindByJobID(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job_not_found"})
		return
	}

	resp := gin.H{
		"job_id":     job.JobID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if job.ArtifactsJSON != nil {
		var bundle dto.ArtifactBundle
		if err := json.Unmarshal([]byte(*job.ArtifactsJSON), &bundle); err == nil {
			resp["artifacts"] = bundle
		}
	}
	if job.ErrorMessage != nil {
		resp["error_message"] = *job.ErrorMessage
	}
	c.JSON(http.StatusOK, resp)
}

func acceptableContentType(ct string) bool {
	if ct == "" || ct == "application/octet-stream" {
		return true
	}
	return strings.HasPrefix(ct, "video/")
}
