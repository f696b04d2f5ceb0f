package repository

import (
	"github.com/pccr10001/callscreen/internal/model"
	"gorm.io/gorm"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *model.Webhook) error {
	return r.db.Create(webhook).Error
}

func (r *WebhookRepository) List() ([]model.Webhook, error) {
	var list []model.Webhook
	err := r.db.Order("id").Find(&list).Error
	return list, err
}

// FindForCall returns the enabled hooks interested in a call with the given
// decision.
func (r *WebhookRepository) FindForCall(blocked bool) ([]model.Webhook, error) {
	var list []model.Webhook
	q := r.db.Where("enabled = ?", true)
	if !blocked {
		q = q.Where("only_blocked = ?", false)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *WebhookRepository) Delete(id uint) error {
	return r.db.Delete(&model.Webhook{}, id).Error
}
