package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// recordHandlers builds the repository handlers shared by every table keyed
// by a text id column.
func recordHandlers[R any](newRecord func() *R, id func(*R) *string) repository.ModelHandlers[*R] {
	return repository.ModelHandlers[*R]{
		NewRecord: newRecord,
		GetID: func(record *R) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(*id(record))
		},
		SetID: func(record *R, value uuid.UUID) {
			if record == nil {
				return
			}
			*id(record) = value.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *R) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(*id(record))
		},
	}
}

func userVerificationHandlers() repository.ModelHandlers[*userVerificationRecord] {
	return recordHandlers(
		func() *userVerificationRecord { return &userVerificationRecord{} },
		func(record *userVerificationRecord) *string { return &record.ID },
	)
}

func webhookEventHandlers() repository.ModelHandlers[*webhookEventRecord] {
	return recordHandlers(
		func() *webhookEventRecord { return &webhookEventRecord{} },
		func(record *webhookEventRecord) *string { return &record.ID },
	)
}

func activityLogHandlers() repository.ModelHandlers[*activityLogRecord] {
	return recordHandlers(
		func() *activityLogRecord { return &activityLogRecord{} },
		func(record *activityLogRecord) *string { return &record.ID },
	)
}

func verificationAlertHandlers() repository.ModelHandlers[*verificationAlertRecord] {
	return recordHandlers(
		func() *verificationAlertRecord { return &verificationAlertRecord{} },
		func(record *verificationAlertRecord) *string { return &record.ID },
	)
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
