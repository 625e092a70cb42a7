package connector

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic points at a problem in a document. Line and Col are 1-based,
// 0 when unknown.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Col      int      `json:"col"`
	Message  string   `json:"message"`
}

type DiagnosticResponse struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

var lineRe = regexp.MustCompile(`line (\d+)`)

// Diag checks that data is a valid document for path. A valid document
// yields an empty response; only an invalid address is an error.
func (c *Connector) Diag(path string, data []byte) (*DiagnosticResponse, error) {
	a, err := addr.Decode(path)
	if err != nil {
		return nil, err
	}

	resp := &DiagnosticResponse{Diagnostics: []Diagnostic{}}
	switch a.Kind {
	case addr.KindConfig:
		if _, err := config.ParseConnector(data); err != nil {
			d := Diagnostic{Severity: SeverityError, Message: err.Error()}
			if m := lineRe.FindStringSubmatch(err.Error()); m != nil {
				d.Line, _ = strconv.Atoi(m[1])
			}
			resp.Diagnostics = append(resp.Diagnostics, d)
		}
	case addr.KindTopic, addr.KindAcl, addr.KindQuota:
		if _, err := resource.Deserialize(a, data); err != nil {
			d := Diagnostic{Severity: SeverityError, Message: err.Error()}
			var de *resource.DeserializeError
			if errors.As(err, &de) {
				d.Line, d.Col = de.Line, de.Column
			}
			resp.Diagnostics = append(resp.Diagnostics, d)
		}
	case addr.KindTask:
		if len(bytes.TrimSpace(data)) != 0 {
			resp.Diagnostics = append(resp.Diagnostics, Diagnostic{
				Severity: SeverityWarning,
				Message:  "no tasks are defined, the body is ignored",
			})
		}
	}
	return resp, nil
}

// Eq reports whether a and b describe the same state at path, ignoring
// formatting and key order.
func (c *Connector) Eq(path string, a, b []byte) (bool, error) {
	address, err := addr.Decode(path)
	if err != nil {
		return false, err
	}

	switch address.Kind {
	case addr.KindConfig:
		ca, err := config.ParseConnector(a)
		if err != nil {
			return false, err
		}
		cb, err := config.ParseConnector(b)
		if err != nil {
			return false, err
		}
		ma, err := config.MarshalConnector(ca)
		if err != nil {
			return false, err
		}
		mb, err := config.MarshalConnector(cb)
		if err != nil {
			return false, err
		}
		return bytes.Equal(ma, mb), nil
	case addr.KindTopic, addr.KindAcl, addr.KindQuota:
		ra, err := resource.Deserialize(address, a)
		if err != nil {
			return false, err
		}
		rb, err := resource.Deserialize(address, b)
		if err != nil {
			return false, err
		}
		return resource.Equal(ra, rb), nil
	}
	return false, fmt.Errorf("%s addresses have no comparable state", address.Kind)
}
