// Package archive keeps an audit copy of every finished booking and handoff
// packet in S3.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

const recordVersion = "1.0"

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives finished packets. It is a conversation.ResultSink and
// ignores text turns.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

var _ conversation.ResultSink = (*Store)(nil)

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

func (s *Store) RecordTurn(ctx context.Context, result *conversation.TurnResult) error {
	if !s.Enabled() || !result.Terminal() {
		return nil
	}

	var (
		packet any
		entry  = ManifestEntry{SessionID: result.SessionID, Kind: string(result.Kind)}
	)
	record := PacketRecord{
		Version:    recordVersion,
		SessionID:  result.SessionID,
		Kind:       string(result.Kind),
		ArchivedAt: s.now().UTC(),
	}
	if result.Intake != nil {
		record.ConditionID = result.Intake.ConditionID
		if result.Intake.PhoneNumber != nil {
			record.PhoneHash = HashPhone(*result.Intake.PhoneNumber)
		}
	}
	switch {
	case result.Booking != nil:
		packet = result.Booking
		entry.SelfPay = result.Booking.SelfPay
	case result.Handoff != nil:
		packet = result.Handoff
		record.Urgency = string(result.Handoff.Urgency)
	}

	body, err := json.Marshal(packet)
	if err != nil {
		return fmt.Errorf("archive: marshal packet: %w", err)
	}
	record.Packet = body

	key, err := s.putRecord(ctx, record)
	if err != nil {
		return err
	}

	entry.S3Key = key
	entry.ConditionID = record.ConditionID
	entry.Urgency = record.Urgency
	entry.ArchivedAt = record.ArchivedAt.Format(time.RFC3339)
	if err := s.AppendManifest(ctx, entry); err != nil {
		// the packet itself is archived
		s.logger.Warn("failed to append manifest", "error", err, "session_id", result.SessionID)
	}
	return nil
}

func (s *Store) putRecord(ctx context.Context, record PacketRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}

	at := record.ArchivedAt
	key := fmt.Sprintf("packets/v1/%s/%d/%02d/%02d/%s.json",
		record.Kind, at.Year(), at.Month(), at.Day(), record.SessionID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived packet to S3", "session_id", record.SessionID, "kind", record.Kind, "s3_key", key)
	return key, nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now().UTC()
	manifestKey := fmt.Sprintf("packets/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		_ = getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

// HashPhone returns the hex-encoded SHA-256 hash of a phone number.
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h)
}
