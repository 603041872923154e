package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func webhookSubscriptionHandlers() repository.ModelHandlers[*webhookSubscriptionRecord] {
	return repository.ModelHandlers[*webhookSubscriptionRecord]{
		NewRecord: func() *webhookSubscriptionRecord {
			return &webhookSubscriptionRecord{}
		},
		GetID: func(record *webhookSubscriptionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *webhookSubscriptionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "url"
		},
		GetIdentifierValue: func(record *webhookSubscriptionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.URL)
		},
	}
}

func receiverThrottleHandlers() repository.ModelHandlers[*receiverThrottleRecord] {
	return repository.ModelHandlers[*receiverThrottleRecord]{
		NewRecord: func() *receiverThrottleRecord {
			return &receiverThrottleRecord{}
		},
		GetID: func(record *receiverThrottleRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *receiverThrottleRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "url"
		},
		GetIdentifierValue: func(record *receiverThrottleRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.URL)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
