package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/brpix/pix-processor/utils"
)

type ApiClient struct {
	ID         string `gorm:"primaryKey"`
	Name       string
	ApiKey     string `gorm:"column:api_key"`
	Active     bool
	WebhookURL string `gorm:"column:webhook_url"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ApiClient) TableName() string {
	return "api_clients"
}

func (store *ApiStore) FetchApiClientByKey(apiKey string) utils.Result[*ApiClient] {
	var client ApiClient

	result := store.db.Connection.
		Where("api_key = ? AND active = ?", apiKey, true).
		Limit(1).
		Find(&client)

	if result.Error != nil {
		return failedApiClientResult(result.Error)
	}
	if client.ID == "" {
		return failedApiClientResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&client)
}

func failedApiClientResult(err error) utils.Result[*ApiClient] {
	result := utils.FailedResult[*ApiClient](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.NonCapturable().NonRetryable()
	}

	return result
}
