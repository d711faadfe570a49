package customer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/pkg/logctx"
	"github.com/fatflowers/deliveryhub/pkg/tool"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

var (
	ErrNotFound      = errors.New("customer not found")
	ErrInvalidInput  = errors.New("invalid customer")
	ErrNoMainAddress = errors.New("customer has no address")
)

type CreateRequest struct {
	Name      string          `json:"name"`
	Email     *string         `json:"email,omitempty"`
	Phone     string          `json:"phone"`
	Addresses []types.Address `json:"addresses"`
	Notes     string          `json:"notes,omitempty"`
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Customer, error) {
	if req == nil || req.Name == "" || req.Phone == "" {
		return nil, fmt.Errorf("%w: name and phone are required", ErrInvalidInput)
	}
	c := &models.Customer{
		ID:        tool.NewID(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Addresses: datatypes.NewJSONType(normalizeMain(req.Addresses)),
		IsActive:  true,
		Notes:     req.Notes,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("customer created", "customer_id", c.ID)
	return c, nil
}

// Get loads a customer by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

// MainAddress returns the customer's default delivery address.
func (s *Service) MainAddress(ctx context.Context, id string) (types.Address, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return types.Address{}, err
	}
	addr, ok := c.MainAddress()
	if !ok {
		return types.Address{}, fmt.Errorf("%w: %s", ErrNoMainAddress, id)
	}
	return addr, nil
}

// normalizeMain keeps at most one IsMain address, defaulting to the first.
func normalizeMain(addrs []types.Address) []types.Address {
	out := make([]types.Address, len(addrs))
	copy(out, addrs)
	mainIdx := -1
	for i := range out {
		if out[i].IsMain && mainIdx < 0 {
			mainIdx = i
		}
		out[i].IsMain = false
	}
	if len(out) > 0 {
		if mainIdx < 0 {
			mainIdx = 0
		}
		out[mainIdx].IsMain = true
	}
	return out
}

var Module = fx.Options(
	fx.Provide(NewService),
)
