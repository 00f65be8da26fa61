package user_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/user"
	emailsvc "github.com/digiwizhq/digiwiz/services/email"
	logsvc "github.com/digiwizhq/digiwiz/services/logger"
	inmemdb "github.com/digiwizhq/digiwiz/storage/database/inmem"
	testutil "github.com/digiwizhq/digiwiz/tests"
)

var ctx = context.Background()

type testEnv struct {
	repo user.Repository
	svc  *user.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db := inmemdb.NewDB()
	repo := inmemdb.NewUserRepository(db)
	svc := user.NewService(
		db, repo,
		emailsvc.NewConsoleServiceMock(),
		logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags)),
	)
	return &testEnv{repo: repo, svc: svc}
}

func TestService_RegisterStudent(t *testing.T) {
	env := setup(t)
	sentBefore := len(emailsvc.SentMessages)

	usr, err := env.svc.RegisterStudent(ctx, user.NewUser{
		Name:            "Jane Doe",
		Username:        "jdoe42",
		Email:           "jdoe@test.cd",
		Password:        "s3cret",
		PasswordConfirm: "s3cret",
	})
	if err != nil {
		t.Fatalf("RegisterStudent() failed: %v", err)
	}
	if usr.IsActive {
		t.Error("RegisterStudent() account is active, want inactive until activation")
	}
	if !usr.IsStudent() || usr.IsTeacher() || usr.IsAdmin() {
		t.Errorf("RegisterStudent() roles = %v, want student only", usr.Roles)
	}

	if len(emailsvc.SentMessages) != sentBefore+1 {
		t.Fatalf("sent messages = %d, want %d", len(emailsvc.SentMessages), sentBefore+1)
	}
	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	if len(msg.To) != 1 || msg.To[0].Address != usr.Email {
		t.Errorf("activation mail recipients = %+v, want %s", msg.To, usr.Email)
	}
	if !strings.Contains(msg.BodyStr, "/activate/") {
		t.Errorf("activation mail body has no activation link: %q", msg.BodyStr)
	}
}

func TestService_Activate(t *testing.T) {
	env := setup(t)

	usr, err := env.svc.RegisterTeacher(ctx, user.NewUser{
		Name:            "John Doe",
		Username:        "johnd1",
		Email:           "johnd@test.cd",
		Password:        "s3cret",
		PasswordConfirm: "s3cret",
	})
	if err != nil {
		t.Fatalf("RegisterTeacher() failed: %v", err)
	}
	uid := user.EncodeUID(usr)
	token, err := user.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	if _, err = env.svc.Activate(ctx, "!!!", token); errors.Cause(err) != user.ErrInvalidToken {
		t.Errorf("Activate() bad uid error = %v, want %v", err, user.ErrInvalidToken)
	}
	if _, err = env.svc.Activate(ctx, uid, "nope-nope"); errors.Cause(err) != user.ErrInvalidToken {
		t.Errorf("Activate() bad token error = %v, want %v", err, user.ErrInvalidToken)
	}

	activated, err := env.svc.Activate(ctx, uid, token)
	if err != nil {
		t.Fatalf("Activate() failed: %v", err)
	}
	if !activated.IsActive {
		t.Error("Activate() account still inactive")
	}

	// activation invalidates the token: IsActive is part of the signed value
	if _, err = env.svc.Activate(ctx, uid, token); errors.Cause(err) != user.ErrInvalidToken {
		t.Errorf("Activate() reused token error = %v, want %v", err, user.ErrInvalidToken)
	}
}

func TestNewUser_Validate_uniqueness(t *testing.T) {
	env := setup(t)
	existing := testutil.CreateUser(t, env.repo, "User", "awe123", "awe@test.cd", "mdr", nil, true)

	nu := user.NewUser{
		Name:            "Copy Cat",
		Username:        existing.Username,
		Email:           "cat@test.cd",
		Password:        "s3cret",
		PasswordConfirm: "s3cret",
	}
	err := nu.Validate(env.svc)
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %v, want *core.ValidationError", err)
	}
	if errors.Cause(vErr.Err) != user.ErrUsernameExists {
		t.Errorf("Validate() cause = %v, want %v", vErr.Err, user.ErrUsernameExists)
	}

	nu.Username = "catcat"
	nu.Email = existing.Email
	err = nu.Validate(env.svc)
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %v, want *core.ValidationError", err)
	}
	if errors.Cause(vErr.Err) != user.ErrEmailExists {
		t.Errorf("Validate() cause = %v, want %v", vErr.Err, user.ErrEmailExists)
	}
}
