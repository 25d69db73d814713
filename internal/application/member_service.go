package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

// DefaultMembersPerPage is the attendee picker page size.
const DefaultMembersPerPage = 20

// MaxMembersPerPage caps the page size a caller may ask for.
const MaxMembersPerPage = 100

// PasswordHasher encodes a plain password for storage.
type PasswordHasher func(password string) (string, error)

// MemberService exposes member search and administration.
type MemberService struct {
	members     persistence.MemberRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMemberService constructs a MemberService.
func NewMemberService(members persistence.MemberRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MemberService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MemberService{
		members:     members,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *MemberService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MemberService", operation, attrs...)
}

// Search pages through members matching params.Terms. An empty page is not
// an error.
func (s *MemberService) Search(ctx context.Context, params SearchMembersParams) (MemberPage, error) {
	if s == nil || s.members == nil {
		return MemberPage{}, fmt.Errorf("MemberService is not configured")
	}
	if params.Principal.UserID == "" {
		return MemberPage{}, ErrUnauthorized
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = DefaultMembersPerPage
	}
	perPage = min(perPage, MaxMembersPerPage)
	page := max(params.Page, 1)

	exclude := append([]string{}, params.Exclude...)
	if !params.IncludeSelf {
		exclude = append(exclude, params.Principal.UserID)
	}

	found, total, err := s.members.SearchMembers(ctx, persistence.MemberSearch{
		Terms:   params.Terms,
		Exclude: uniqueStrings(exclude),
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	})
	if err != nil {
		s.loggerWith(ctx, "Search").ErrorContext(ctx, "member search failed", "error", err, "error_kind", ErrorKind(err))
		return MemberPage{}, mapRepoError(err)
	}

	result := MemberPage{
		Members:    make([]Member, 0, len(found)),
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}
	for _, m := range found {
		result.Members = append(result.Members, toMember(m))
	}
	return result, nil
}

// Get returns a member by id.
func (s *MemberService) Get(ctx context.Context, id string) (Member, error) {
	if s == nil || s.members == nil {
		return Member{}, fmt.Errorf("MemberService is not configured")
	}
	stored, err := s.members.GetMember(ctx, id)
	if err != nil {
		return Member{}, mapRepoError(err)
	}
	return toMember(stored), nil
}

// Create registers a member. Only site admins may call it; bootstrap tools
// pass an admin principal.
func (s *MemberService) Create(ctx context.Context, params CreateMemberParams) (member Member, err error) {
	if s == nil || s.members == nil || s.hash == nil {
		return Member{}, fmt.Errorf("MemberService is not configured")
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	logger := s.loggerWith(ctx, "Create", "principal_id", params.Principal.UserID, "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member created", "member_id", member.ID)
	}()

	if !params.Principal.IsAdmin {
		return Member{}, ErrUnauthorized
	}

	vErr := &scheduling.ValidationError{}
	if email == "" {
		vErr.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.Add("email", "email is not a valid address")
	}
	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		vErr.Add("display_name", "display name is required")
	}
	if len(params.Password) < 8 {
		vErr.Add("password", "password must be at least 8 characters")
	}
	if err := vErr.Err(); err != nil {
		return Member{}, err
	}

	hash, err := s.hash(params.Password)
	if err != nil {
		return Member{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	stored := persistence.Member{
		ID:           s.idGenerator(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		IsAdmin:      params.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.members.CreateMember(ctx, stored); err != nil {
		return Member{}, mapRepoError(err)
	}
	return toMember(stored), nil
}
