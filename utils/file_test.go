package utils

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("avatar", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["avatar"][0]
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "http://localhost:5200/uploads/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	url, err := u.UploadFile(context.Background(), fileHeader(t, "me.png", []byte("png-bytes")), "avatars/u1/a.png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://localhost:5200/uploads/avatars/u1/a.png" {
		t.Fatalf("url = %q", url)
	}
	got, err := os.ReadFile(filepath.Join(dir, "avatars", "u1", "a.png"))
	if err != nil || string(got) != "png-bytes" {
		t.Fatalf("stored %q, err %v", got, err)
	}
}

func TestLocalUploaderStaysInDir(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(filepath.Join(dir, "uploads"), "/uploads")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	url, err := u.UploadFile(context.Background(), fileHeader(t, "x.png", []byte("x")), "../../escape.png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "/uploads/escape.png" {
		t.Fatalf("url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads", "escape.png")); err != nil {
		t.Fatalf("file not kept inside upload dir: %v", err)
	}
	if _, err := u.UploadFile(context.Background(), fileHeader(t, "x.png", []byte("x")), "/"); err == nil {
		t.Fatal("expected error for empty key")
	}
}
