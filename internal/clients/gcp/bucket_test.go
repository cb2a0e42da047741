package gcp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

func TestLocalBucketRoundTrip(t *testing.T) {
	b, err := NewLocalBucket(logger.Nop(), t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalBucket: %v", err)
	}
	ctx := context.Background()
	if err := b.UploadFile(ctx, "MWA-ABCD-EFGH.png", bytes.NewReader([]byte("png"))); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	rc, err := b.DownloadFile(ctx, "MWA-ABCD-EFGH.png")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "png" {
		t.Fatalf("got=%q", got)
	}
	if u := b.GetPublicURL("MWA-ABCD-EFGH.png"); u != "/vouchers/MWA-ABCD-EFGH.png" {
		t.Fatalf("url=%q", u)
	}
}

func TestLocalBucketRejectsTraversal(t *testing.T) {
	b, _ := NewLocalBucket(logger.Nop(), t.TempDir(), "https://cdn.example.org/v/")
	if err := b.UploadFile(context.Background(), "../escape.png", bytes.NewReader(nil)); err == nil {
		t.Fatalf("expected traversal rejection")
	}
	if _, err := b.DownloadFile(context.Background(), "missing.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("err=%v", err)
	}
	if u := b.GetPublicURL("x.png"); u != "https://cdn.example.org/v/x.png" {
		t.Fatalf("url=%q", u)
	}
}

func TestContentTypeForKey(t *testing.T) {
	if ContentTypeForKey("a.PNG") != "image/png" || ContentTypeForKey("a.bin") != "" {
		t.Fatalf("unexpected content types")
	}
}
