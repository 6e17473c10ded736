package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/schollz/progressbar/v3"

	"cloudtally/internal/logging"
)

const (
	defaultMaxRetries        = 3
	defaultRetryDelay        = 2 * time.Second
	defaultPartSize          = 5 * 1024 * 1024 // 5MB
	defaultConcurrentUploads = 5
	defaultOutputDir         = "output"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// UploadConfig holds upload configuration
type UploadConfig struct {
	PartSize        int64
	ConcurrentParts int
}

// Type represents the output destination
type Type string

const (
	// FileSystem represents local filesystem output
	FileSystem Type = "filesystem"
	// S3 represents S3 bucket output
	S3 Type = "s3"
)

// ParseType validates a destination name. Empty selects FileSystem.
func ParseType(name string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(name))); t {
	case "":
		return FileSystem, nil
	case FileSystem, S3:
		return t, nil
	default:
		return "", fmt.Errorf("invalid output type %q (valid: filesystem, s3)", name)
	}
}

// Config holds output configuration
type Config struct {
	Type      Type
	S3Bucket  string
	S3Region  string
	OutputDir string
	// RoleARN is assumed for S3 uploads when set
	RoleARN string
	Retry   *RetryConfig
	Upload  *UploadConfig
	// ShowProgress renders an upload progress bar on stderr
	ShowProgress bool
}

// Writer stores rendered reports on the filesystem or in S3
type Writer struct {
	config      Config
	now         func() time.Time
	sleep       func(time.Duration)
	newUploader func() (s3manageriface.UploaderAPI, error)
}

// NewWriter creates a new output writer with default settings
func NewWriter(config Config) *Writer {
	if config.Type == "" {
		config.Type = FileSystem
	}
	if config.Retry == nil {
		config.Retry = &RetryConfig{
			MaxRetries: defaultMaxRetries,
			RetryDelay: defaultRetryDelay,
		}
	}
	if config.Upload == nil {
		config.Upload = &UploadConfig{
			PartSize:        defaultPartSize,
			ConcurrentParts: defaultConcurrentUploads,
		}
	}
	if config.Type == FileSystem && config.OutputDir == "" {
		config.OutputDir = defaultOutputDir
	}

	w := &Writer{
		config: config,
		now:    time.Now,
		sleep:  time.Sleep,
	}
	w.newUploader = w.s3Uploader
	return w
}

// getFilePath returns the destination of a report:
// filesystem: <output_dir>/YYYY/MM/DD/<subscription>/<kind>-HHMMSS.<ext>
// s3: YYYY/MM/DD/<subscription>/<kind>-HHMMSS.<ext>
func (w *Writer) getFilePath(subscriptionID, kind, ext string, t time.Time) string {
	fileName := fmt.Sprintf("%s-%s.%s", kind, t.Format("150405"), ext)
	datePath := t.Format("2006/01/02")

	if w.config.Type == FileSystem {
		return filepath.Join(w.config.OutputDir, filepath.FromSlash(datePath), subscriptionID, fileName)
	}
	// S3 keys always use forward slashes
	return path.Join(datePath, subscriptionID, fileName)
}

// Write stores one rendered report and returns where it was written
func (w *Writer) Write(subscriptionID, kind, ext string, data []byte) (string, error) {
	dest := w.getFilePath(subscriptionID, kind, ext, w.now())

	switch w.config.Type {
	case FileSystem:
		if err := w.writeToFileSystem(dest, data); err != nil {
			return "", err
		}
		return dest, nil
	case S3:
		if err := w.writeToS3WithRetry(dest, data); err != nil {
			return "", err
		}
		return fmt.Sprintf("s3://%s/%s", w.config.S3Bucket, dest), nil
	default:
		return "", fmt.Errorf("unsupported output type: %s", w.config.Type)
	}
}

// writeToFileSystem writes data to the local filesystem
func (w *Writer) writeToFileSystem(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// #nosec G306 -- reports are meant to be shared
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", dest, err)
	}
	return nil
}

// writeToS3WithRetry writes data to an S3 bucket with retry logic
func (w *Writer) writeToS3WithRetry(key string, data []byte) error {
	if w.config.S3Bucket == "" {
		return fmt.Errorf("S3 bucket not specified")
	}

	uploader, err := w.newUploader()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < w.config.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Warn("Retrying S3 upload", map[string]interface{}{
				"attempt": attempt + 1,
				"max":     w.config.Retry.MaxRetries,
				"error":   lastErr.Error(),
			})
			w.sleep(w.config.Retry.RetryDelay)
		}

		if err := w.writeToS3(uploader, key, data); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to upload to S3 after %d attempts: %w",
		w.config.Retry.MaxRetries, lastErr)
}

// s3Uploader builds an uploader from the shared AWS config, assuming RoleARN when set
func (w *Writer) s3Uploader() (s3manageriface.UploaderAPI, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(w.config.S3Region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	if w.config.RoleARN != "" {
		creds := stscreds.NewCredentialsWithClient(sts.New(sess), w.config.RoleARN, func(p *stscreds.AssumeRoleProvider) {
			p.RoleSessionName = fmt.Sprintf("cloudtally-upload-%d", w.now().Unix())
		})
		sess = sess.Copy(&aws.Config{Credentials: creds})
	}

	return s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = w.config.Upload.PartSize
		u.Concurrency = w.config.Upload.ConcurrentParts
	}), nil
}

// writeToS3 uploads data with server-side encryption
func (w *Writer) writeToS3(uploader s3manageriface.UploaderAPI, key string, data []byte) error {
	var body io.Reader = bytes.NewReader(data)
	if w.config.ShowProgress {
		body = &progressReader{
			reader: body,
			bar: progressbar.NewOptions64(
				int64(len(data)),
				progressbar.OptionSetDescription("Uploading to S3..."),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(15),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			),
		}
	}

	_, err := uploader.Upload(&s3manager.UploadInput{
		Bucket:               aws.String(w.config.S3Bucket),
		Key:                  aws.String(key),
		Body:                 body,
		ServerSideEncryption: aws.String("aws:kms"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	reader io.Reader
	bar    *progressbar.ProgressBar
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if barErr := r.bar.Add(n); barErr != nil {
		logging.Debug("Failed to update progress bar", map[string]interface{}{
			"error": barErr.Error(),
		})
	}
	return n, err
}
