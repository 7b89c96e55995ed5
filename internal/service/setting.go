package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/pkg/encrypt"
	"gorm.io/gorm"
)

// AISettings is the client-facing view of a user's provider keys. Keys are
// masked on read; a masked value sent back on write leaves the stored key as is.
type AISettings struct {
	AnthropicAPIKey   string `json:"anthropic_api_key"`
	GeminiAPIKey      string `json:"gemini_api_key"`
	HuggingFaceAPIKey string `json:"huggingface_api_key"`
	PreferredModel    string `json:"preferred_model"`
}

type SettingService struct {
	db     *gorm.DB
	aesKey string
}

func NewSettingService(db *gorm.DB, aesKey string) *SettingService {
	return &SettingService{db: db, aesKey: aesKey}
}

func (s *SettingService) load(userID uint) (*model.UserSetting, error) {
	var setting model.UserSetting
	err := s.db.Where("user_id = ?", userID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (s *SettingService) mask(enc string) string {
	if enc == "" {
		return ""
	}
	plain, err := encrypt.AESDecrypt(s.aesKey, enc)
	if err != nil {
		return encrypt.MaskMarker
	}
	return encrypt.MaskSecret(plain, encrypt.MaskMarker)
}

func (s *SettingService) Get(userID uint) (*AISettings, error) {
	setting, err := s.load(userID)
	if err != nil || setting == nil {
		return &AISettings{}, err
	}
	return &AISettings{
		AnthropicAPIKey:   s.mask(setting.AnthropicAPIKeyEnc),
		GeminiAPIKey:      s.mask(setting.GeminiAPIKeyEnc),
		HuggingFaceAPIKey: s.mask(setting.HuggingFaceAPIKeyEnc),
		PreferredModel:    setting.PreferredModel,
	}, nil
}

// seal encrypts value unless it is a masked echo, in which case current is kept.
func (s *SettingService) seal(value, current string) (string, error) {
	if encrypt.IsMasked(value) {
		return current, nil
	}
	enc, err := encrypt.AESEncrypt(s.aesKey, value)
	if err != nil {
		return "", fmt.Errorf("encrypt api key: %w", err)
	}
	return enc, nil
}

func (s *SettingService) Upsert(userID uint, in AISettings) (*AISettings, error) {
	setting, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		setting = &model.UserSetting{UserID: userID}
	}

	if setting.AnthropicAPIKeyEnc, err = s.seal(in.AnthropicAPIKey, setting.AnthropicAPIKeyEnc); err != nil {
		return nil, err
	}
	if setting.GeminiAPIKeyEnc, err = s.seal(in.GeminiAPIKey, setting.GeminiAPIKeyEnc); err != nil {
		return nil, err
	}
	if setting.HuggingFaceAPIKeyEnc, err = s.seal(in.HuggingFaceAPIKey, setting.HuggingFaceAPIKeyEnc); err != nil {
		return nil, err
	}
	setting.PreferredModel = in.PreferredModel

	if err := s.db.Save(setting).Error; err != nil {
		return nil, err
	}
	return s.Get(userID)
}

// APIKeys returns the decrypted keys stored for the user.
func (s *SettingService) APIKeys(_ context.Context, userID uint) (ai.Keys, error) {
	setting, err := s.load(userID)
	if err != nil || setting == nil {
		return ai.Keys{}, err
	}
	keys := ai.Keys{Model: setting.PreferredModel}
	if keys.Anthropic, err = encrypt.AESDecrypt(s.aesKey, setting.AnthropicAPIKeyEnc); err != nil {
		return ai.Keys{}, fmt.Errorf("decrypt anthropic key: %w", err)
	}
	if keys.Gemini, err = encrypt.AESDecrypt(s.aesKey, setting.GeminiAPIKeyEnc); err != nil {
		return ai.Keys{}, fmt.Errorf("decrypt gemini key: %w", err)
	}
	if keys.HuggingFace, err = encrypt.AESDecrypt(s.aesKey, setting.HuggingFaceAPIKeyEnc); err != nil {
		return ai.Keys{}, fmt.Errorf("decrypt huggingface key: %w", err)
	}
	return keys, nil
}
