package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"overlay-server/core"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// objectAPI is the subset of the S3 client the store needs.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type s3Store struct {
	client objectAPI
	bucket string
	prefix string
	// S3 has no transactions; updates are serialised within this process.
	mu sync.Mutex
}

// NewStore creates a new S3-based store keeping objects under prefix.
func NewStore(bucketName, prefix string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return newStore(s3.NewFromConfig(cfg), bucketName, prefix)
}

func newStore(client objectAPI, bucketName, prefix string) *s3Store {
	return &s3Store{
		client: client,
		bucket: bucketName,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *s3Store) overlayKey(id string) (string, error) {
	// Reject anything that is not a plain name to keep keys inside the prefix.
	if id == "" || id == "." || id == ".." || path.Base(id) != id || strings.Contains(id, `\`) {
		return "", &core.NotFoundError{ID: id}
	}
	return path.Join(s.prefix, "overlays", id+".json"), nil
}

func (s *s3Store) settingsKey() string {
	return path.Join(s.prefix, "settings", "stream-url.json")
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

func (s *s3Store) getJSON(ctx context.Context, key string, v any) error {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

func (s *s3Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *s3Store) Create(ctx context.Context, draft core.Draft) (*core.Overlay, error) {
	overlay, err := draft.Build()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	overlay.ID = ulid.Make().String()
	overlay.CreatedAt = now
	overlay.UpdatedAt = now

	key, _ := s.overlayKey(overlay.ID)
	if err := s.putJSON(ctx, key, overlay); err != nil {
		return nil, fmt.Errorf("failed to upload overlay: %w", err)
	}

	logrus.WithField("overlay_id", overlay.ID).Info("Overlay created successfully")
	return &overlay, nil
}

func (s *s3Store) List(ctx context.Context) ([]core.Overlay, error) {
	prefix := path.Join(s.prefix, "overlays") + "/"

	overlays := []core.Overlay{}
	var token *string
	for {
		output, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list overlays: %w", err)
		}

		for _, object := range output.Contents {
			var overlay core.Overlay
			if err := s.getJSON(ctx, aws.ToString(object.Key), &overlay); err != nil {
				logrus.WithError(err).Warnf("failed to read overlay object %s", aws.ToString(object.Key))
				continue
			}
			overlays = append(overlays, overlay)
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		token = output.NextContinuationToken
	}

	sort.Slice(overlays, func(i, j int) bool {
		return overlays[i].ID < overlays[j].ID
	})
	return overlays, nil
}

func (s *s3Store) Get(ctx context.Context, id string) (*core.Overlay, error) {
	key, err := s.overlayKey(id)
	if err != nil {
		return nil, err
	}

	var overlay core.Overlay
	if err := s.getJSON(ctx, key, &overlay); err != nil {
		if isNoSuchKey(err) {
			return nil, &core.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to get overlay %s: %w", id, err)
	}
	return &overlay, nil
}

func (s *s3Store) Update(ctx context.Context, id string, patch core.Patch) (*core.Overlay, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	overlay, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(overlay)
	overlay.Version++
	overlay.UpdatedAt = time.Now().UTC()

	key, _ := s.overlayKey(id)
	if err := s.putJSON(ctx, key, overlay); err != nil {
		return nil, fmt.Errorf("failed to save overlay %s: %w", id, err)
	}

	logrus.WithFields(logrus.Fields{"overlay_id": id, "version": overlay.Version}).Info("Overlay updated successfully")
	return overlay, nil
}

// Delete checks existence first because S3 deletes of missing keys succeed.
func (s *s3Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	key, _ := s.overlayKey(id)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete overlay %s: %w", id, err)
	}

	logrus.WithField("overlay_id", id).Info("Overlay deleted successfully")
	return nil
}

type streamSettings struct {
	StreamURL string `json:"streamUrl"`
}

func (s *s3Store) GetStreamURL(ctx context.Context) (string, error) {
	var cfg streamSettings
	if err := s.getJSON(ctx, s.settingsKey(), &cfg); err != nil {
		if isNoSuchKey(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get stream settings: %w", err)
	}
	return cfg.StreamURL, nil
}

func (s *s3Store) SetStreamURL(ctx context.Context, url string) error {
	if err := s.putJSON(ctx, s.settingsKey(), streamSettings{StreamURL: url}); err != nil {
		return fmt.Errorf("failed to save stream settings: %w", err)
	}
	logrus.WithField("stream_url", url).Info("Stream URL saved")
	return nil
}
