package users

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/campify/internal/pkg/notify"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/infra/fakeapi"
)

type staticSession entity.Session

func (s staticSession) Current() (entity.Session, bool) { return entity.Session(s), s.Token != "" }

func newService(t *testing.T) (*fakeapi.Harness, *Service, entity.Identity) {
	t.Helper()
	h := fakeapi.NewHarness(t)
	admin := h.Server.AddAccount("Root", "root@campify.io", "pw", entity.RoleAdmin)
	sess := staticSession{Identity: admin, Token: h.Server.IssueToken(admin.ID)}
	return h, New(h.Client, sess, h.Dispatcher, WithLogger(h.Logger)), admin
}

func TestFetchBanUnbanDelete(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newService(t)
	ada := h.Server.AddAccount("Ada", "ada@campify.io", "pw", entity.RoleUser)

	require.NoError(t, svc.Fetch(ctx))
	require.Len(t, svc.Users(), 2)
	assert.False(t, svc.Loading())

	require.NoError(t, svc.Ban(ctx, ada.ID))
	stored, _ := h.Server.Account(ada.ID)
	assert.Equal(t, entity.StatusInactive, stored.Status)
	for _, u := range svc.Users() {
		if u.ID == ada.ID {
			assert.Equal(t, entity.StatusInactive, u.Status)
		}
	}

	require.NoError(t, svc.Unban(ctx, ada.ID))
	stored, _ = h.Server.Account(ada.ID)
	assert.Equal(t, entity.StatusActive, stored.Status)

	require.NoError(t, svc.Delete(ctx, ada.ID))
	assert.Len(t, svc.Users(), 1)
	_, ok := h.Server.Account(ada.ID)
	assert.False(t, ok)

	assert.Equal(t, []string{MsgBanned, MsgUnbanned, MsgDeleted}, h.Messages(notify.KindSuccess))
}

func TestFetchFailureClears(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newService(t)
	require.NoError(t, svc.Fetch(ctx))
	require.NotEmpty(t, svc.Users())

	h.Server.Fail(http.MethodGet, "/api/users/admin", http.StatusInternalServerError)
	require.Error(t, svc.Fetch(ctx))
	assert.Empty(t, svc.Users())
	assert.Equal(t, []string{MsgFetchFailed}, h.Messages(notify.KindError))
}

func TestInvite(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newService(t)

	require.NoError(t, svc.Invite(ctx, "new@campify.io", ""))
	require.NoError(t, svc.Invite(ctx, "boss@campify.io", entity.RoleAdmin))
	assert.Equal(t, map[string]entity.Role{
		"new@campify.io":  entity.RoleUser,
		"boss@campify.io": entity.RoleAdmin,
	}, h.Server.Invites())

	require.Error(t, svc.Invite(ctx, "  ", entity.RoleUser))
	assert.Equal(t, []string{MsgEmailRequired}, h.Messages(notify.KindError))
}

func TestBanUnknownUser(t *testing.T) {
	h, svc, _ := newService(t)
	require.Error(t, svc.Ban(context.Background(), "missing"))
	assert.Equal(t, []string{"User not found"}, h.Messages(notify.KindError))
}

func TestLogoutForgetsDirectory(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newService(t)
	require.NoError(t, svc.Fetch(ctx))
	require.NotEmpty(t, svc.Users())

	svc.HandleLogout(ctx)
	assert.Empty(t, svc.Users())
	assert.False(t, svc.Loading())
}
