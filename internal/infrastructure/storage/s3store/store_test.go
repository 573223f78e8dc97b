package s3store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

type fakeObjectAPI struct {
	putInput      *s3.PutObjectInput
	putBody       []byte
	putErr        error
	headErr       error
	createCalls   int
	createRegions []string
}

func (f *fakeObjectAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putInput = params
	if params.Body != nil {
		body, _ := io.ReadAll(params.Body)
		f.putBody = body
	}
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeObjectAPI) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalls++
	region := ""
	if params.CreateBucketConfiguration != nil {
		region = string(params.CreateBucketConfiguration.LocationConstraint)
	}
	f.createRegions = append(f.createRegions, region)
	return &s3.CreateBucketOutput{}, nil
}

func TestPutSendsObject(t *testing.T) {
	api := &fakeObjectAPI{}
	store := newWithClient(api, "uploads-bucket", "eu-central-1")

	key, err := store.Put(context.Background(), "/uploads/1_ab_data.json", []byte(`[{"a":1}]`), "application/json")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if key != "uploads/1_ab_data.json" {
		t.Fatalf("unexpected key %q", key)
	}
	if aws.ToString(api.putInput.Bucket) != "uploads-bucket" {
		t.Fatalf("unexpected bucket %q", aws.ToString(api.putInput.Bucket))
	}
	if aws.ToString(api.putInput.ContentType) != "application/json" {
		t.Fatalf("unexpected content type %q", aws.ToString(api.putInput.ContentType))
	}
	if aws.ToInt64(api.putInput.ContentLength) != int64(len(`[{"a":1}]`)) {
		t.Fatalf("unexpected content length %d", aws.ToInt64(api.putInput.ContentLength))
	}
	if string(api.putBody) != `[{"a":1}]` {
		t.Fatalf("unexpected body %q", string(api.putBody))
	}
}

func TestPutWrapsClientError(t *testing.T) {
	api := &fakeObjectAPI{putErr: errors.New("access denied")}
	store := newWithClient(api, "b", "us-east-1")

	if _, err := store.Put(context.Background(), "uploads/x.csv", []byte("x"), "text/csv"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := store.Put(context.Background(), "  ", []byte("x"), "text/csv"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty key, got %v", err)
	}
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	api := &fakeObjectAPI{headErr: errors.New("not found")}
	store := newWithClient(api, "b", "eu-central-1")

	if err := store.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if api.createCalls != 1 || api.createRegions[0] != "eu-central-1" {
		t.Fatalf("unexpected create calls %d regions %v", api.createCalls, api.createRegions)
	}

	existing := &fakeObjectAPI{}
	if err := newWithClient(existing, "b", "us-east-1").EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if existing.createCalls != 0 {
		t.Fatalf("expected no create for existing bucket")
	}
}
