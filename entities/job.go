package entities

import (
	"time"

	"worker-preprocess/constant"
)

type Job struct {
	ID            uint               `json:"-" gorm:"primaryKey;autoIncrement"`
	JobID         string             `json:"job_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	Status        constant.JobStatus `json:"status" gorm:"type:varchar(32);index;not null"`
	ContentType   *string            `json:"content_type" gorm:"type:varchar(16)"`
	FileName      *string            `json:"file_name" gorm:"type:varchar(255)"`
	FileSizeBytes *int64             `json:"file_size_bytes" gorm:"type:bigint"`
	SourceLocator *string            `json:"source_locator" gorm:"type:text"`
	ErrorMessage  *string            `json:"error_message" gorm:"type:text"`
	ArtifactsJSON *string            `json:"artifacts_json" gorm:"type:text"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}
