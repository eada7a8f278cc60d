package unit

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is the outcome of an Operation. The zero value is Failure.
type Result int

const (
	Failure Result = iota
	Success
)

func (r Result) String() string {
	if r == Success {
		return "SUCCESS"
	}
	return "FAILURE"
}

// Operation performs the external work to start or stop a unit. A non-nil
// error or a panic is treated as Failure, and its text becomes the comment
// of the resulting FAILED transition.
type Operation func(ctx context.Context) (Result, error)

// Operations is the pair of operations a unit runs.
type Operations struct {
	Start Operation
	Stop  Operation
}

// Succeed is an Operation that always succeeds.
func Succeed(context.Context) (Result, error) {
	return Success, nil
}

// Fail returns an Operation that always fails with reason.
func Fail(reason string) Operation {
	return func(context.Context) (Result, error) {
		return Failure, errors.New(reason)
	}
}

// Func adapts an error-returning function to an Operation.
func Func(fn func(ctx context.Context) error) Operation {
	return func(ctx context.Context) (Result, error) {
		if err := fn(ctx); err != nil {
			return Failure, err
		}
		return Success, nil
	}
}

type phase int

const (
	phaseNone phase = iota
	phaseStart
	phaseStop
)

func (p phase) String() string {
	switch p {
	case phaseStart:
		return "start"
	case phaseStop:
		return "stop"
	default:
		return "none"
	}
}

// outcome returns a finished operation to the control plane.
type outcome struct {
	phase   phase
	result  Result
	comment string
}

func execute(tracer trace.Tracer, unitID string, p phase, op Operation) (out outcome) {
	ctx, span := tracer.Start(
		context.Background(),
		"unit."+p.String(),
		trace.WithAttributes(attribute.String("unit.id", unitID)),
	)
	defer span.End()

	out.phase = p
	defer func() {
		if r := recover(); r != nil {
			out.result = Failure
			out.comment = fmt.Sprintf("panic: %v", r)
			span.SetStatus(codes.Error, out.comment)
		}
	}()

	result, err := op(ctx)
	switch {
	case err != nil:
		out.result = Failure
		out.comment = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, out.comment)
	case result != Success:
		out.result = Failure
		out.comment = p.String() + " operation failed"
		span.SetStatus(codes.Error, out.comment)
	default:
		out.result = Success
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("unit.result", out.result.String()))
	return out
}
