package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

// OSSStore keeps objects in an Aliyun OSS bucket.
type OSSStore struct {
	bucket  *oss.Bucket
	baseURL string
}

var _ core.ObjectStore = (*OSSStore)(nil)

func NewOSSStore(conf *core.Config) (*OSSStore, error) {
	sc := conf.Storage
	if sc.OSSEndpoint == "" || sc.OSSAccessKeyID == "" || sc.OSSAccessKeySecret == "" || sc.Bucket == "" {
		return nil, errors.New("missing OSS endpoint, keys or bucket")
	}
	client, err := oss.New(sc.OSSEndpoint, sc.OSSAccessKeyID, sc.OSSAccessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "creating OSS client")
	}
	bkt, err := client.Bucket(sc.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "opening OSS bucket")
	}

	baseURL := strings.TrimRight(sc.PublicBaseURL, "/")
	if baseURL == "" {
		end := strings.TrimPrefix(strings.TrimPrefix(sc.OSSEndpoint, "https://"), "http://")
		baseURL = fmt.Sprintf("https://%s.%s", sc.Bucket, end)
	}
	return &OSSStore{bucket: bkt, baseURL: baseURL}, nil
}

func (s *OSSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, string, error) {
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentLength(size),
		oss.ContentDisposition("attachment"),
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", "", errors.Wrap(err, "putting OSS object")
	}
	return s.baseURL + "/" + key, key, nil
}

func (s *OSSStore) Delete(ctx context.Context, ref string) error {
	return errors.Wrap(s.bucket.DeleteObject(ref, oss.WithContext(ctx)), "deleting OSS object")
}
