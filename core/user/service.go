package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrNotActive      = errors.New("account is not active")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		QueryAllUsers(ctx context.Context, exec ...core.DBExecutor) ([]User, error)
		GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, uname string, exec ...core.DBExecutor) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) error
		SetUserInterests(ctx context.Context, userID int, subjectIDs []int, exec ...core.DBExecutor) error
	}

	Service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
		log     core.Logger
	}
)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, log core.Logger) *Service {
	return &Service{db: db, repo: repo, mailSvc: mailSvc, log: log}
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create creates an active user right away; used by admins and the CLI.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	return svc.create(ctx, nu, nu.Roles, true)
}

// RegisterStudent creates an inactive student account and emails an activation link.
func (svc *Service) RegisterStudent(ctx context.Context, nu NewUser) (User, error) {
	return svc.register(ctx, nu, StudentRoles)
}

// RegisterTeacher creates an inactive teacher account and emails an activation link.
func (svc *Service) RegisterTeacher(ctx context.Context, nu NewUser) (User, error) {
	return svc.register(ctx, nu, TeacherRoles)
}

func (svc *Service) register(ctx context.Context, nu NewUser, roles []string) (User, error) {
	usr, err := svc.create(ctx, nu, roles, false)
	if err != nil {
		return User{}, err
	}
	// Activation mail is fire-and-forget: the account stays created even
	// if the mail cannot be sent; the sender logs a warning on failure.
	svc.sendActivationMail(usr)
	return usr, nil
}

func (svc *Service) create(ctx context.Context, nu NewUser, roles []string, isActive bool) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  isActive,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) sendActivationMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		svc.log.Warn("could not generate activation token", err)
		return
	}
	link := fmt.Sprintf("%s/activate/%s/%s", core.Conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Activate your account",
		BodyStr: fmt.Sprintf(
			"Hi %s,\r\n\r\nPlease confirm your email address to complete the registration:\r\n%s\r\n",
			usr.Name, link,
		),
	})
}

// Activate flips an inactive account to active if uid and token check out.
func (svc *Service) Activate(ctx context.Context, uid, token string) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	if err = verifyToken(usr, token); err != nil {
		return User{}, err
	}

	isActive := true
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, &isActive)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *Service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		Image:     uu.Image,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

// UpdateInterests replaces a student's subject interests.
func (svc *Service) UpdateInterests(ctx context.Context, actor User, subjectIDs []int) error {
	if !actor.IsStudent() {
		return core.ErrPermissionDenied
	}
	return svc.repo.SetUserInterests(ctx, actor.ID, subjectIDs)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteUsersByID(ctx, ids)
}
