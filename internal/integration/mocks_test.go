// Package integration drives the whole HTTP surface with the real wizard,
// gateway client, renderer and uploader. Only the remote systems are faked.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ============================================================================
// Gateway
// ============================================================================

// fakeGateway answers every prompt with the configured reply.
type fakeGateway struct {
	mu      sync.Mutex
	reply   string
	status  int
	prompts []string
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	t.Helper()
	g := &fakeGateway{reply: "계란(2개), 밀가루(200g), 우유(300ml)", status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		g.mu.Lock()
		g.prompts = append(g.prompts, body.Message)
		status, reply := g.status, g.reply
		g.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"response": reply})
	}))
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *fakeGateway) set(status int, reply string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status, g.reply = status, reply
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// ============================================================================
// DynamoDB
// ============================================================================

var equalityTerm = regexp.MustCompile(`(#\d+) = (:\d+)`)

// fakeDynamo keeps items in insertion order and evaluates equality filters.
type fakeDynamo struct {
	mu    sync.Mutex
	items []map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		if matches(item, in) {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeDynamo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func matches(item map[string]types.AttributeValue, in *dynamodb.ScanInput) bool {
	if in.FilterExpression == nil {
		return true
	}
	for _, m := range equalityTerm.FindAllStringSubmatch(*in.FilterExpression, -1) {
		want, _ := in.ExpressionAttributeValues[m[2]].(*types.AttributeValueMemberS)
		got, _ := item[in.ExpressionAttributeNames[m[1]]].(*types.AttributeValueMemberS)
		if want == nil || got == nil || want.Value != got.Value {
			return false
		}
	}
	return true
}

// ============================================================================
// S3
// ============================================================================

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}
