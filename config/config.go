package config

import (
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	MinIOPrefix string        `yaml:"minio_prefix"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Bus         Bus           `yaml:"bus"`
	Pipeline    Pipeline      `yaml:"pipeline"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

// Bus names the topics and the partition layout. Assigned lists the
// partitions this instance consumes; empty means all of them.
type Bus struct {
	TopicSubmitted    string `yaml:"topic_submitted"`
	TopicPreprocessed string `yaml:"topic_preprocessed"`
	Partitions        int    `yaml:"partitions"`
	Assigned          []int  `yaml:"assigned"`
}

// Pipeline holds the processing cost bounds and tool paths.
type Pipeline struct {
	FrameRate        float64 `yaml:"frame_rate"`
	MaxFrames        int     `yaml:"max_frames"`
	FaceDetectSample int     `yaml:"face_detect_sample"`
	CascadeFile      string  `yaml:"cascade_file"`
	WorkDir          string  `yaml:"work_dir"`
	MaxUploadBytes   int64   `yaml:"max_upload_bytes"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("bus.topic_submitted", "video.submitted")
	viper.SetDefault("bus.topic_preprocessed", "video.preprocessed")
	viper.SetDefault("bus.partitions", 1)
	viper.SetDefault("rabbitmq_exchange", "preprocessing_exchange")
	viper.SetDefault("rabbitmq_kind", "direct")
	viper.SetDefault("pipeline.frame_rate", 1.0)
	viper.SetDefault("pipeline.max_frames", 120)
	viper.SetDefault("pipeline.face_detect_sample", 30)
	viper.SetDefault("pipeline.work_dir", "/tmp/preproc")
	viper.SetDefault("pipeline.max_upload_bytes", int64(512*1024*1024))

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		ExchangeName: viper.GetString("rabbitmq_exchange"),
		Kind:         viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		MinIOPrefix: viper.GetString("minio.prefix"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
		},
		Bus: Bus{
			TopicSubmitted:    viper.GetString("bus.topic_submitted"),
			TopicPreprocessed: viper.GetString("bus.topic_preprocessed"),
			Partitions:        viper.GetInt("bus.partitions"),
			Assigned:          viper.GetIntSlice("bus.assigned"),
		},
		Pipeline: Pipeline{
			FrameRate:        viper.GetFloat64("pipeline.frame_rate"),
			MaxFrames:        viper.GetInt("pipeline.max_frames"),
			FaceDetectSample: viper.GetInt("pipeline.face_detect_sample"),
			CascadeFile:      viper.GetString("pipeline.cascade_file"),
			WorkDir:          viper.GetString("pipeline.work_dir"),
			MaxUploadBytes:   viper.GetInt64("pipeline.max_upload_bytes"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
