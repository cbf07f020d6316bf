package storagesvc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core"
)

// OSSStore keeps documents in an Alibaba Cloud OSS bucket. References are the object keys.
type OSSStore struct {
	bucket *oss.Bucket
	prefix string
}

func NewOSSStore(conf core.DocumentsConfig) (*OSSStore, error) {
	if conf.OSSEndpoint == "" || conf.OSSKeyID == "" || conf.OSSKeySecret == "" || conf.OSSBucket == "" {
		return nil, errors.New("missing OSS endpoint, keys or bucket")
	}
	client, err := oss.New(conf.OSSEndpoint, conf.OSSKeyID, conf.OSSKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "creating OSS client")
	}
	bucket, err := client.Bucket(conf.OSSBucket)
	if err != nil {
		return nil, errors.Wrap(err, "opening OSS bucket")
	}

	prefix := strings.Trim(conf.Root, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &OSSStore{bucket: bucket, prefix: prefix}, nil
}

func (s *OSSStore) key(ref string) (string, error) {
	name, err := cleanName(ref)
	if err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

func (s *OSSStore) Save(ctx context.Context, name string, content []byte) (string, error) {
	key, err := s.key(name)
	if err != nil {
		return "", err
	}
	err = s.bucket.PutObject(key, bytes.NewReader(content),
		oss.WithContext(ctx),
		oss.ContentType("application/pdf"),
		oss.ContentDisposition("attachment"),
	)
	if err != nil {
		return "", errors.Wrap(err, "uploading document")
	}
	return name, nil
}

func (s *OSSStore) Exists(ctx context.Context, ref string) (bool, error) {
	key, err := s.key(ref)
	if err != nil {
		return false, err
	}
	if _, err = s.bucket.GetObjectDetailedMeta(key, oss.WithContext(ctx)); err != nil {
		var se oss.ServiceError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "checking document")
	}
	return true, nil
}

func (s *OSSStore) Load(ctx context.Context, ref string) ([]byte, error) {
	key, err := s.key(ref)
	if err != nil {
		return nil, err
	}
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "downloading document")
	}
	defer func() { _ = body.Close() }()

	content, err := io.ReadAll(body)
	return content, errors.Wrap(err, "reading document")
}
