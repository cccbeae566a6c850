package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	objects map[string][]byte
	lengths map[string]int64
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), lengths: make(map[string]int64)}
}

func (m *mockS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*params.Key] = data
	m.lengths[*params.Key] = aws.ToInt64(params.ContentLength)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := newMockS3Client()
	s := NewS3WithClient(client, "bucket", "shares")

	n, err := s.Put(ctx, "id.txt", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, []byte("content"), client.objects["shares/id.txt"])
	assert.Equal(t, int64(7), client.lengths["shares/id.txt"])

	obj, err := s.Get(ctx, "id.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	obj.Body.Close()
	assert.Equal(t, "content", string(got))
	assert.Equal(t, int64(7), obj.Size)

	require.NoError(t, s.Delete(ctx, "id.txt"))
	_, err = s.Get(ctx, "id.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreWithoutPrefix(t *testing.T) {
	client := newMockS3Client()
	s := NewS3WithClient(client, "bucket", "")

	_, err := s.Put(context.Background(), "k", strings.NewReader("v"))
	require.NoError(t, err)
	assert.Contains(t, client.objects, "k")

	_, err = s.Put(context.Background(), "../k", strings.NewReader("v"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
