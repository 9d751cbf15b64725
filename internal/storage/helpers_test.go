package storage_test

import (
	"identityradio/backend/internal/models"

	"gorm.io/datatypes"
)

func newOptions(texts ...string) datatypes.JSONType[[]models.PollOption] {
	return datatypes.NewJSONType(models.NewPollOptions(texts))
}
