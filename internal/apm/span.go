package apm

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span narrows the OTEL span surface to what the app uses.
type Span interface {
	End()
	AddEvent(name string)
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetOK(description string)
	SetError(description string)
	Raw() trace.Span
}

type span struct {
	s trace.Span
}

// NewSpan wraps an OTEL span.
func NewSpan(s trace.Span) Span {
	return &span{s: s}
}

func (s *span) End()                                    { s.s.End() }
func (s *span) AddEvent(name string)                    { s.s.AddEvent(name) }
func (s *span) SetAttributes(attrs ...attribute.KeyValue) { s.s.SetAttributes(attrs...) }
func (s *span) RecordError(err error)                   { s.s.RecordError(err) }
func (s *span) SetOK(description string)                { s.s.SetStatus(codes.Ok, description) }
func (s *span) SetError(description string)             { s.s.SetStatus(codes.Error, description) }
func (s *span) Raw() trace.Span                         { return s.s }
