package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	values map[string]string
	calls  int
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("decryption not requested")
	}
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, apiErr("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(v)}}, nil
}

func TestParameterStore(t *testing.T) {
	api := &fakeSSM{values: map[string]string{"/leadify/graph": "s3cret", "/leadify/empty": ""}}
	store := NewParameterStore(api, discardLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		v, err := store.Get(ctx, "/leadify/graph")
		if err != nil || v != "s3cret" {
			t.Fatalf("Get() = %q, %v", v, err)
		}
	}
	if api.calls != 1 {
		t.Errorf("expected cached second read, got %d calls", api.calls)
	}

	store.Forget("/leadify/graph")
	if _, err := store.Get(ctx, "/leadify/graph"); err != nil || api.calls != 2 {
		t.Errorf("Forget should force a reread, calls = %d err = %v", api.calls, err)
	}

	if _, err := store.Get(ctx, "/leadify/missing"); GetAWSErrorCode(err) != "ParameterNotFound" {
		t.Errorf("missing parameter error = %v", err)
	}
	if _, err := store.Get(ctx, "/leadify/empty"); err == nil {
		t.Error("empty parameter should fail")
	}
}

func TestParameterStoreSecret(t *testing.T) {
	api := &fakeSSM{values: map[string]string{"/p": "from-ssm"}}
	store := NewParameterStore(api, discardLogger())
	ctx := context.Background()

	tests := []struct {
		inline, param, want string
		wantErr            bool
	}{
		{"inline", "/p", "inline", false},
		{"", "/p", "from-ssm", false},
		{"", "", "", true},
	}
	for _, tt := range tests {
		got, err := store.Secret(ctx, tt.inline, tt.param)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Secret(%q, %q) = %q, %v", tt.inline, tt.param, got, err)
		}
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, apiErr("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri, bucket, key string
		wantErr          bool
	}{
		{"s3://config/templates/catalog.yaml", "config", "templates/catalog.yaml", false},
		{"s3://config", "", "", true},
		{"s3:///key", "", "", true},
		{"file.yaml", "", "", true},
	}
	for _, tt := range tests {
		b, k, err := ParseS3URI(tt.uri)
		if (err != nil) != tt.wantErr || b != tt.bucket || k != tt.key {
			t.Errorf("ParseS3URI(%q) = %q, %q, %v", tt.uri, b, k, err)
		}
	}
}

func TestReadObject(t *testing.T) {
	api := &fakeS3{objects: map[string]string{"cfg/catalog.yaml": "default_language: en\n"}}
	body, err := ReadObject(context.Background(), api, "s3://cfg/catalog.yaml", discardLogger())
	if err != nil || string(body) != "default_language: en\n" {
		t.Fatalf("ReadObject() = %q, %v", body, err)
	}
	if _, err := ReadObject(context.Background(), api, "s3://cfg/other.yaml", discardLogger()); GetAWSErrorCode(err) != "NoSuchKey" {
		t.Errorf("missing object error = %v", err)
	}
}
