package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/reviewdesk/core"
)

// FirebaseStore keeps objects in the Firebase project's Cloud Storage bucket.
type FirebaseStore struct {
	bucket *gcs.BucketHandle
	name   string
}

var _ core.ObjectStore = (*FirebaseStore)(nil)

func NewFirebaseStore(ctx context.Context, conf *core.Config) (*FirebaseStore, error) {
	sc := conf.Storage
	if sc.Bucket == "" {
		return nil, errors.New("missing firebase storage bucket")
	}
	var opts []option.ClientOption
	if sc.FirebaseCredFile != "" {
		opts = append(opts, option.WithCredentialsFile(sc.FirebaseCredFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: sc.Bucket}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase storage")
	}
	bkt, err := client.DefaultBucket()
	if err != nil {
		return nil, errors.Wrap(err, "opening firebase bucket")
	}
	return &FirebaseStore{bucket: bkt, name: sc.Bucket}, nil
}

func (s *FirebaseStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (string, string, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ContentDisposition = "attachment"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", "", errors.Wrap(err, "writing firebase object")
	}
	if err := w.Close(); err != nil {
		return "", "", errors.Wrap(err, "closing firebase object")
	}
	u := fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media", s.name, url.PathEscape(key))
	return u, key, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, ref string) error {
	err := s.bucket.Object(ref).Delete(ctx)
	if err != nil && err != gcs.ErrObjectNotExist {
		return errors.Wrap(err, "deleting firebase object")
	}
	return nil
}
