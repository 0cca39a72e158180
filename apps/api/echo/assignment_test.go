package echoapi

import (
	"bytes"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

func newBindContext(t *testing.T, contentType string, body *bytes.Buffer) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func Test_bindNewAssignment(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		body := bytes.NewBufferString(`{"title":"Essay","kind":"written","deadline":"2030-01-02T15:04:05Z"}`)
		ctx := newBindContext(t, echo.MIMEApplicationJSON, body)

		data, fh, err := bindNewAssignment(ctx)
		if err != nil {
			t.Fatalf("bindNewAssignment() failed: %v", err)
		}
		if fh != nil {
			t.Error("bindNewAssignment() returned an attachment for a JSON body")
		}
		if data.Title != "Essay" || data.Kind != assignment.KindWritten {
			t.Errorf("bindNewAssignment() data = %+v", data)
		}
	})

	t.Run("multipart with attachment", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		_ = w.WriteField("title", "Homework")
		_ = w.WriteField("kind", assignment.KindFile)
		_ = w.WriteField("deadline", time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
		_ = w.WriteField("questions", `[]`)
		fw, err := w.CreateFormFile("attachment", "notes.pdf")
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		if _, err = fw.Write([]byte("pdf bytes")); err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
		if err = w.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
		ctx := newBindContext(t, w.FormDataContentType(), &buf)

		data, fh, err := bindNewAssignment(ctx)
		if err != nil {
			t.Fatalf("bindNewAssignment() failed: %v", err)
		}
		if data.Title != "Homework" || data.Kind != assignment.KindFile {
			t.Errorf("bindNewAssignment() data = %+v", data)
		}
		if fh == nil {
			t.Fatal("bindNewAssignment() returned no attachment header")
		}
		if fh.Filename != "notes.pdf" {
			t.Errorf("bindNewAssignment() filename = %s; want notes.pdf", fh.Filename)
		}

		// the header is still openable; nothing holds it open underneath
		f, err := fh.Open()
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		defer f.Close()
		content, err := ioutil.ReadAll(f)
		if err != nil {
			t.Fatalf("ReadAll() failed: %v", err)
		}
		if string(content) != "pdf bytes" {
			t.Errorf("attachment content = %q; want %q", content, "pdf bytes")
		}
	})

	t.Run("multipart without attachment", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		_ = w.WriteField("title", "Homework")
		_ = w.WriteField("kind", assignment.KindFile)
		if err := w.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
		ctx := newBindContext(t, w.FormDataContentType(), &buf)

		data, fh, err := bindNewAssignment(ctx)
		if err != nil {
			t.Fatalf("bindNewAssignment() failed: %v", err)
		}
		if fh != nil {
			t.Error("bindNewAssignment() returned an attachment header")
		}
		if data.Title != "Homework" {
			t.Errorf("bindNewAssignment() data = %+v", data)
		}
	})

	t.Run("invalid deadline", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		_ = w.WriteField("title", "Homework")
		_ = w.WriteField("deadline", "tomorrow")
		if err := w.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
		ctx := newBindContext(t, w.FormDataContentType(), &buf)

		_, _, err := bindNewAssignment(ctx)
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("bindNewAssignment() error = %v; want a validation error", err)
		}
	})
}
