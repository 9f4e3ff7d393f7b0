package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Destination stores a finished bundle.
type Destination interface {
	// Write stores data under key and returns a locator for the artifact.
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// S3Destination writes bundles to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (d *S3Destination) Write(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := key
	if d.prefix != "" {
		objectKey = path.Join(d.prefix, key)
	}
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return "s3://" + d.bucket + "/" + objectKey, nil
}

// GitDestination commits bundles into a local clone and pushes.
type GitDestination struct {
	repo   string // path to the local clone
	branch string
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone with an origin remote.
func NewGitDestination(repo, branch string) *GitDestination {
	return &GitDestination{repo: repo, branch: branch}
}

func (d *GitDestination) Write(ctx context.Context, key string, data []byte) (string, error) {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return "", fmt.Errorf("git checkout: %w", err)
	}
	// The remote might not have the branch yet.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	filePath := filepath.Join(d.repo, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := d.git(ctx, "add", key); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}

	locator := "git:" + d.repo + "@" + d.branch + ":" + key
	if err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return locator, nil
	}
	if err := d.git(ctx, "commit", "-m", "build: "+key); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	if err := d.git(ctx, "push", "origin", d.branch); err != nil {
		return "", fmt.Errorf("git push: %w", err)
	}
	return locator, nil
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// DirDestination writes bundles below a local directory.
type DirDestination struct {
	root string
}

func NewDirDestination(root string) *DirDestination {
	return &DirDestination{root: root}
}

func (d *DirDestination) Write(_ context.Context, key string, data []byte) (string, error) {
	p := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	// Write then rename so readers never see a partial bundle.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return "file://" + p, nil
}
