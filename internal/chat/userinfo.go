package chat

import (
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/crypto"
	"github.com/fathima-sithara/support-chat/internal/domain"
)

// Placeholder shown when a sealed field no longer verifies.
const redacted = "[Encrypted]"

// SealUserInfo encrypts the fixed sensitive field set (userAgent, ip,
// location); everything else passes through in the clear.
func (s *Service) SealUserInfo(info *domain.UserInfo) (*domain.SealedUserInfo, error) {
	if info == nil {
		return nil, nil
	}
	sealed := &domain.SealedUserInfo{
		Origin:    info.Origin,
		URL:       info.URL,
		Timestamp: info.Timestamp,
	}
	var err error
	if info.UserAgent != "" {
		if sealed.UserAgent, err = s.crypto.Encrypt(info.UserAgent); err != nil {
			return nil, err
		}
	}
	if info.IP != "" {
		if sealed.IP, err = s.crypto.Encrypt(info.IP); err != nil {
			return nil, err
		}
	}
	if info.Location != "" {
		if sealed.Location, err = s.crypto.Encrypt(info.Location); err != nil {
			return nil, err
		}
	}
	return sealed, nil
}

// OpenUserInfo decrypts a sealed record for the admin view. A field that
// fails verification is replaced with a redacted placeholder rather than
// failing the whole response.
func (s *Service) OpenUserInfo(sealed *domain.SealedUserInfo) *domain.UserInfo {
	if sealed == nil {
		return nil
	}
	info := &domain.UserInfo{
		Origin:    sealed.Origin,
		URL:       sealed.URL,
		Timestamp: sealed.Timestamp,
	}
	info.UserAgent = s.openField(sealed.UserAgent, "userAgent")
	info.IP = s.openField(sealed.IP, "ip")
	info.Location = s.openField(sealed.Location, "location")
	return info
}

func (s *Service) openField(f *crypto.EncryptedField, name string) string {
	if f == nil {
		return ""
	}
	plain, err := s.crypto.Decrypt(f)
	if err != nil {
		s.log.Warn("user info field failed to decrypt", zap.String("field", name))
		return redacted
	}
	return plain
}
