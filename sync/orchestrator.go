// ABOUTME: Scan-and-sync pipeline composing decode, resolve, and CRM push
// ABOUTME: Short-circuits on the first failure and journals every push attempt
package sync

import (
	"context"
	"errors"
	"log"

	"github.com/harperreed/scanpush/models"
	"github.com/harperreed/scanpush/qr"
	"go.opentelemetry.io/otel/attribute"
)

// Pusher delivers one record to the CRM.
type Pusher interface {
	Push(ctx context.Context, rec *models.FormRecord) (*SyncResult, error)
}

// AttemptLog journals push attempts. Implementations must not write form records.
type AttemptLog interface {
	RecordAttempt(ctx context.Context, attempt *models.SyncAttempt) error
}

// DecodeFunc extracts an identifier from image bytes.
type DecodeFunc func(image []byte) (string, error)

// Outcome is a successful scan-and-sync.
type Outcome struct {
	Identifier string
	Record     *models.FormRecord
	Result     *SyncResult
}

// Orchestrator runs the scan-and-sync pipeline. All dependencies are fixed at
// construction; it holds no per-request state.
type Orchestrator struct {
	decode   DecodeFunc
	resolver *Resolver
	crm      Pusher
	attempts AttemptLog
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDecoder replaces qr.Decode.
func WithDecoder(decode DecodeFunc) Option {
	return func(o *Orchestrator) { o.decode = decode }
}

// WithAttemptLog journals every push attempt to log.
func WithAttemptLog(attempts AttemptLog) Option {
	return func(o *Orchestrator) { o.attempts = attempts }
}

func NewOrchestrator(resolver *Resolver, crm Pusher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		decode:   qr.Decode,
		resolver: resolver,
		crm:      crm,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DecodeIdentifier reads the record identifier from an image. Decoder
// failures are KindInvalidInput.
func (o *Orchestrator) DecodeIdentifier(ctx context.Context, image []byte) (string, error) {
	_, span := tracer.Start(ctx, "scanpush.decode")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", aborted("decode", err)
	}

	id, err := o.decode(image)
	if err != nil {
		msg := "qr code not recognized"
		if errors.Is(err, qr.ErrUnreadableImage) {
			msg = "uploaded file is not a readable image"
		}
		invalid := &Error{Kind: KindInvalidInput, Message: msg, Err: err}
		markSpan(span, invalid)
		return "", invalid
	}

	span.SetAttributes(attribute.String("scanpush.form_id", id))
	return id, nil
}

// ScanAndSync decodes image, resolves the identifier, and pushes the record
// to the CRM. Each step short-circuits; CRM failures are returned exactly as
// the client reported them. The form store is only read.
func (o *Orchestrator) ScanAndSync(ctx context.Context, image []byte) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "scanpush.scan_and_sync")
	defer span.End()

	id, err := o.DecodeIdentifier(ctx, image)
	if err != nil {
		markSpan(span, err)
		return nil, err
	}

	// Decode is not preemptible; honor a deadline that passed meanwhile.
	if err := ctx.Err(); err != nil {
		err = aborted("lookup", err)
		markSpan(span, err)
		return nil, err
	}

	rec, err := o.resolver.Resolve(ctx, id)
	if err != nil {
		markSpan(span, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		err = aborted("push", err)
		markSpan(span, err)
		return nil, err
	}

	result, err := o.crm.Push(ctx, rec)
	o.journal(ctx, rec.ID, result, err)
	if err != nil {
		markSpan(span, err)
		return nil, err
	}

	return &Outcome{Identifier: id, Record: rec, Result: result}, nil
}

func (o *Orchestrator) journal(ctx context.Context, formID string, result *SyncResult, pushErr error) {
	if o.attempts == nil {
		return
	}

	attempt := &models.SyncAttempt{FormID: formID, Status: models.SyncStatusSucceeded}
	if pushErr != nil {
		attempt.Status = models.SyncStatusFailed
		attempt.ErrorKind = string(KindOf(pushErr))
		attempt.Detail = pushErr.Error()
		var se *Error
		if errors.As(pushErr, &se) && se.Detail != "" {
			attempt.Detail = se.Detail
		}
	} else if result != nil {
		attempt.RemoteID = result.RemoteID
	}

	// The push already happened; the journal must outlive a cancelled request.
	if err := o.attempts.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		log.Printf("warning: failed to journal sync attempt for %s: %v", formID, err)
	}
}
