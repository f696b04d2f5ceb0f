package repository

import (
	"github.com/pccr10001/callscreen/internal/model"
	"gorm.io/gorm"
)

type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

func (r *CallRepository) Create(call *model.Call) error {
	return r.db.Create(call).Error
}

func (r *CallRepository) Save(call *model.Call) error {
	return r.db.Save(call).Error
}

func (r *CallRepository) FindByID(id uint) (*model.Call, error) {
	var call model.Call
	err := r.db.First(&call, id).Error
	return &call, err
}

// CallFilter pages through history, newest first. Blocked filters on the
// decision when set.
type CallFilter struct {
	Limit   int
	Page    int
	Blocked *bool
}

func (r *CallRepository) List(f CallFilter) ([]model.Call, int64, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Page < 1 {
		f.Page = 1
	}

	q := r.db.Model(&model.Call{})
	if f.Blocked != nil {
		q = q.Where("blocked = ?", *f.Blocked)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Call
	err := q.Order("first_seen desc").Order("id desc").
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&list).Error
	return list, total, err
}
