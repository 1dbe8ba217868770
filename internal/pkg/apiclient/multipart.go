package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

type formField struct {
	name, value string
}

type formFile struct {
	field, filename string
	content         io.Reader
}

// Form is a multipart/form-data body built in call order.
type Form struct {
	fields []formField
	files  []formFile
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Add appends a text field. Repeating a name sends the field several times.
func (f *Form) Add(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// AddFile appends a file part.
func (f *Form) AddFile(field, filename string, content io.Reader) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, content: content})
	return f
}

// HasFile reports whether a file part named field was added.
func (f *Form) HasFile(field string) bool {
	for _, file := range f.files {
		if file.field == field {
			return true
		}
	}
	return false
}

func (f *Form) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, field := range f.fields {
		if err := w.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}
	for _, file := range f.files {
		part, err := w.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, file.content); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", file.filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
