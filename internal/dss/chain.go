package dss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// QueryError is returned when the resolution endpoint answers with a non-200 status.
type QueryError struct {
	StatusCode int
	// Body is the response body, pretty-printed when it is JSON.
	Body string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("unable to expand chain, status code: %d", e.StatusCode)
}

// Field is one name/value pair of a response object. Value holds the string
// form for JSON strings and the raw JSON text for everything else.
type Field struct {
	Name  string
	Value string
}

// Constituent is one member instrument of a chain.
type Constituent struct {
	Identifier string
	Status     string
	// Fields holds every field of the response object in wire order,
	// Identifier and Status included.
	Fields []Field
}

// UnmarshalJSON decodes a constituent object, keeping field order.
func (c *Constituent) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	fields, err := decodeOrderedObject(b)
	if err != nil {
		return err
	}
	out := Constituent{Fields: fields}
	for _, f := range fields {
		switch f.Name {
		case "Identifier":
			out.Identifier = f.Value
		case "Status":
			out.Status = f.Value
		}
	}
	*c = out
	return nil
}

// Get returns the value of the named field.
func (c Constituent) Get(name string) (string, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// IdentifierSet is one resolution entry: a chain and its constituents.
type IdentifierSet struct {
	Identifier   string        `json:"Identifier"`
	Constituents []Constituent `json:"Constituents"`
}

// ChainResult is a parsed resolution response.
type ChainResult struct {
	Sets []IdentifierSet
	// NextLink is set when the server reported more results than it returned.
	// It is never followed.
	NextLink string
}

// Truncated reports whether the server signalled a continuation.
func (r *ChainResult) Truncated() bool { return r.NextLink != "" }

// Identifiers flattens the constituent identifiers of every set, in array order.
func (r *ChainResult) Identifiers() []string {
	out := []string{}
	for _, set := range r.Sets {
		for _, c := range set.Constituents {
			out = append(out, c.Identifier)
		}
	}
	return out
}

// Table materializes the constituents of the first set only. Sets beyond
// index 0 are dropped.
func (r *ChainResult) Table() *Table {
	if len(r.Sets) == 0 {
		return &Table{}
	}
	return newTable(r.Sets[0].Constituents)
}

type chainResponse struct {
	NextLink string          `json:"@odata.nextlink"`
	Value    []IdentifierSet `json:"value"`
}

// ExpandChain resolves the constituents of q.ChainRIC using token.
//
// A non-200 answer yields a *QueryError. A 200 answer with an empty value
// array yields an empty result and a nil error.
func (c *Client) ExpandChain(ctx context.Context, token Token, q ChainQuery) (*ChainResult, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	prefer := "respond-async"
	if c.waitSeconds > 0 {
		prefer += ", wait=" + strconv.Itoa(c.waitSeconds)
	}
	req.Header = c.newRequestHeader(prefer)
	req.Header.Set("Accept-Charset", "UTF-8")
	req.Header.Set("Authorization", "Token"+string(token))

	logger := c.logger.With(zap.String("chain", q.ChainRIC))
	logger.Info("expanding chain",
		zap.String("start", q.Start.UTC().Format(TimeLayout)),
		zap.String("end", q.End.UTC().Format(TimeLayout)),
	)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		logger.Error("unable to expand chain", zap.Int("status", res.StatusCode))
		return nil, &QueryError{StatusCode: res.StatusCode, Body: prettyJSON(b)}
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if ce := logger.Check(zap.DebugLevel, "chain resolution response"); ce != nil {
		ce.Write(zap.String("body", prettyJSON(raw)))
	}

	var out chainResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding chain response: %w", err)
	}

	result := &ChainResult{Sets: out.Value, NextLink: out.NextLink}
	if result.Truncated() {
		logger.Warn("chain response is truncated; remaining constituents are not fetched",
			zap.String("next_link", result.NextLink))
	}
	return result, nil
}

// decodeOrderedObject reads a JSON object into fields, keeping key order.
func decodeOrderedObject(b []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding field %s: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: fieldValue(raw)})
	}
	return fields, nil
}

func fieldValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
