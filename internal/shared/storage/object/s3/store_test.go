package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/internal/shared/storage/object"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "owner/cv.pdf", want: "owner/cv.pdf"},
		{name: "simple prefix", prefix: "resumes", key: "owner/cv.pdf", want: "resumes/owner/cv.pdf"},
		{name: "prefix trailing slash", prefix: "resumes/", key: "owner/cv.pdf", want: "resumes/owner/cv.pdf"},
		{name: "prefix and key slashes", prefix: "/resumes/", key: "/owner/cv.pdf", want: "resumes/owner/cv.pdf"},
		{name: "empty key", prefix: "resumes", key: "", want: "resumes"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, applyPrefix(tt.prefix, tt.key))
		})
	}
}

func TestPutAndOpenWithKMS(t *testing.T) {
	api := newFakeS3()
	store := NewWithClient(api, "bucket", "/uploads/", "kms-key")
	ctx := context.Background()

	stored, err := store.Put(ctx, "u1", "cv.txt", strings.NewReader("Jane Doe"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), stored.Size)
	require.Len(t, api.puts, 1)
	put := api.puts[0]
	assert.Equal(t, "uploads/"+stored.Key, aws.ToString(put.Key))
	assert.Equal(t, s3types.ServerSideEncryptionAwsKms, put.ServerSideEncryption)
	assert.Equal(t, "kms-key", aws.ToString(put.SSEKMSKeyId))
	assert.Equal(t, stored.ContentType, aws.ToString(put.ContentType))

	rc, err := store.Open(ctx, stored.Key)
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "Jane Doe", string(got))
}

func TestPutKeyDefaultsToAES(t *testing.T) {
	api := newFakeS3()
	store := NewWithClient(api, "bucket", "", "")

	_, err := store.PutKey(context.Background(), object.ExtractedKey("o/cv.pdf"), "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, s3types.ServerSideEncryptionAes256, api.puts[0].ServerSideEncryption)
	assert.Contains(t, api.objects, "o/cv.pdf.extracted.txt")
}

func TestErrorsIncludeKey(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("access denied")
	store := NewWithClient(api, "bucket", "", "")

	_, err := store.PutKey(context.Background(), "o/cv.pdf", "application/pdf", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=o/cv.pdf")

	_, err = store.Open(context.Background(), "missing")
	var noKey *s3types.NoSuchKey
	assert.ErrorAs(t, err, &noKey)
}
