package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reqtrack/reqtrack/internal/service"
	"github.com/reqtrack/reqtrack/internal/storage"
)

// multipart form reads: values may repeat a key or carry a comma-separated
// list, and dates accept RFC 3339 or a plain YYYY-MM-DD.

func formValues(c echo.Context) (map[string][]string, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		params, err := c.FormParams()
		return params, err
	}
	if err != nil {
		return nil, err
	}
	return form.Value, nil
}

func formString(v map[string][]string, key string) string {
	if vals := v[key]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func formStringPtr(v map[string][]string, key string) *string {
	if _, ok := v[key]; !ok {
		return nil
	}
	s := formString(v, key)
	return &s
}

// formItems returns one entry per submitted value, in order. A lone value
// holding a JSON array is decoded, so commas inside an entry survive.
func formItems(v map[string][]string, keys ...string) []string {
	var out []string
	for _, key := range keys {
		for _, raw := range v[key] {
			raw = strings.TrimSpace(raw)
			if strings.HasPrefix(raw, "[") {
				var arr []string
				if err := json.Unmarshal([]byte(raw), &arr); err == nil {
					for _, item := range arr {
						if item = strings.TrimSpace(item); item != "" {
							out = append(out, item)
						}
					}
					continue
				}
			}
			if raw != "" {
				out = append(out, raw)
			}
		}
	}
	return out
}

// formList is formItems for short tokens such as tags, where a single
// comma-separated value is also accepted.
func formList(v map[string][]string, keys ...string) []string {
	var out []string
	for _, key := range keys {
		for _, raw := range v[key] {
			for _, part := range strings.Split(raw, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func formListPtr(v map[string][]string, key string) *[]string {
	_, plain := v[key]
	_, brackets := v[key+"[]"]
	if !plain && !brackets {
		return nil
	}
	l := formList(v, key, key+"[]")
	if l == nil {
		l = []string{}
	}
	return &l
}

func formDate(v map[string][]string, key string) (*time.Time, error) {
	raw := formString(v, key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, &service.Error{
		Kind:    service.KindValidation,
		Message: "invalid " + key,
		Fields:  []service.FieldError{{Field: key, Message: "must be a date (YYYY-MM-DD)"}},
	}
}

// formFiles collects the uploads sent under any of fields.
func formFiles(c echo.Context, fields ...string) ([]storage.Upload, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []storage.Upload
	for _, f := range fields {
		for _, fh := range form.File[f] {
			out = append(out, storage.FromMultipart(fh))
		}
	}
	return out, nil
}

// formFile returns the single upload under field, or nil.
func formFile(c echo.Context, field string) (*storage.Upload, error) {
	files, err := formFiles(c, field)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return &files[0], nil
}
