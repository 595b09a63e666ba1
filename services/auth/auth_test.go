package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/threadsclone/backend/internal/graph"
	"github.com/threadsclone/backend/pkg/testutil"
)

const wait = 2 * time.Second

func setup(t *testing.T) (*testutil.Env, *graph.Handler) {
	t.Helper()
	env := testutil.NewEnv(t)
	return env, env.Handler(t, NewResolver(env.Deps), Source())
}

const registerMutation = `mutation($input: RegisterInput!) {
  register(input: $input) { token user { id username email isVerified } }
}`

const loginMutation = `mutation($email: String!, $password: String!) {
  login(input: {email: $email, password: $password}) { token user { id } }
}`

func registerVars(username string) map[string]interface{} {
	return map[string]interface{}{"input": map[string]interface{}{
		"email":    username + "@example.com",
		"username": username,
		"password": "secret1",
		"fullName": "User " + username,
	}}
}

func TestRegisterAndLogin(t *testing.T) {
	env, h := setup(t)

	res := testutil.Exec(t, h, "", registerMutation, registerVars("alice"))
	require.False(t, res.Get("errors").Exists(), res.Raw)
	id := res.Get("data.register.user.id").String()
	assert.Equal(t, "alice", res.Get("data.register.user.username").String())
	assert.False(t, res.Get("data.register.user.isVerified").Bool())
	// email is private to the owner and the registering request is anonymous
	assert.Equal(t, gjson.Null, res.Get("data.register.user.email").Type)

	claims, err := env.Deps.Codec.Verify(res.Get("data.register.token").String())
	require.NoError(t, err)
	assert.Equal(t, id, claims.ID)

	sent := env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "http://frontend.test/verify-email?token=")

	bad := testutil.Exec(t, h, "", loginMutation, map[string]interface{}{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(bad))

	ok := testutil.Exec(t, h, "", loginMutation, map[string]interface{}{"email": " ALICE@example.com", "password": "secret1"})
	require.False(t, ok.Get("errors").Exists(), ok.Raw)
	assert.Equal(t, id, ok.Get("data.login.user.id").String())
}

func TestRegister_Rejects(t *testing.T) {
	_, h := setup(t)

	res := testutil.Exec(t, h, "", registerMutation, registerVars("bob"))
	require.False(t, res.Get("errors").Exists(), res.Raw)

	dup := testutil.Exec(t, h, "", registerMutation, registerVars("bob"))
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(dup))

	short := registerVars("carol")
	short["input"].(map[string]interface{})["password"] = "123"
	res = testutil.Exec(t, h, "", registerMutation, short)
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))
	assert.Equal(t, "password", res.Get("errors.0.extensions.field").String())
}

func TestLogin_RateLimited(t *testing.T) {
	_, h := setup(t)
	vars := map[string]interface{}{"email": "nobody@example.com", "password": "whatever"}

	for i := 0; i < 5; i++ {
		res := testutil.Exec(t, h, "", loginMutation, vars)
		require.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(res), "attempt %d", i+1)
	}
	res := testutil.Exec(t, h, "", loginMutation, vars)
	assert.Equal(t, "RATE_LIMITED", testutil.ErrorCode(res))
}

func TestMe(t *testing.T) {
	env, h := setup(t)
	u := env.CreateUser(t, "dave")

	res := testutil.Exec(t, h, "", `{ me { id } }`, nil)
	assert.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, u.ID, `{ me { id email } }`, nil)
	assert.Equal(t, u.ID, res.Get("data.me.id").String())
	assert.Equal(t, "dave@example.com", res.Get("data.me.email").String())
}

func TestUserQueries(t *testing.T) {
	env, h := setup(t)
	u := env.CreateUser(t, "erin")
	env.CreateUser(t, "errol")
	env.CreateUser(t, "frank")

	res := testutil.Exec(t, h, "", `query($id: ID!) { user(id: $id) { username } }`, map[string]interface{}{"id": u.ID})
	assert.Equal(t, "erin", res.Get("data.user.username").String())

	res = testutil.Exec(t, h, "", `{ user(id: "missing") { id } }`, nil)
	assert.Equal(t, "NOT_FOUND", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, "", `{ userByUsername(username: "frank") { username } }`, nil)
	assert.Equal(t, "frank", res.Get("data.userByUsername.username").String())

	res = testutil.Exec(t, h, "", `{ searchUsers(query: "ER") { username } }`, nil)
	var names []string
	for _, v := range res.Get("data.searchUsers.#.username").Array() {
		names = append(names, v.String())
	}
	assert.ElementsMatch(t, []string{"erin", "errol"}, names)
}

func TestUpdateProfile(t *testing.T) {
	env, h := setup(t)
	u := env.CreateUser(t, "gina")
	env.CreateUser(t, "taken")

	mutation := `mutation($input: UpdateProfileInput!) { updateProfile(input: $input) { fullName bio username } }`

	res := testutil.Exec(t, h, "", mutation, map[string]interface{}{"input": map[string]interface{}{"bio": "hi"}})
	assert.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, u.ID, mutation, map[string]interface{}{"input": map[string]interface{}{"username": "taken"}})
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, u.ID, mutation, map[string]interface{}{"input": map[string]interface{}{"fullName": " Gina G ", "bio": "hello"}})
	require.False(t, res.Get("errors").Exists(), res.Raw)
	assert.Equal(t, "Gina G", res.Get("data.updateProfile.fullName").String())
	assert.Equal(t, "hello", res.Get("data.updateProfile.bio").String())
}

const followMutation = `mutation($id: ID!) { followUser(userId: $id) { id followersCount isFollowing } }`

func TestFollowUser_Gating(t *testing.T) {
	env, h := setup(t)
	a := env.CreateUser(t, "alice")
	b := env.CreateUser(t, "bob")

	res := testutil.Exec(t, h, "", followMutation, map[string]interface{}{"id": b.ID})
	assert.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, a.ID, followMutation, map[string]interface{}{"id": a.ID})
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, a.ID, followMutation, map[string]interface{}{"id": "ghost"})
	assert.Equal(t, "NOT_FOUND", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, a.ID, followMutation, map[string]interface{}{"id": b.ID})
	require.False(t, res.Get("errors").Exists(), res.Raw)
	assert.Equal(t, int64(1), res.Get("data.followUser.followersCount").Int())
	assert.True(t, res.Get("data.followUser.isFollowing").Bool())

	unread, err := env.Store.CountUnread(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	res = testutil.Exec(t, h, a.ID, `mutation($id: ID!) { unfollowUser(userId: $id) { followersCount } }`, map[string]interface{}{"id": b.ID})
	assert.Equal(t, int64(0), res.Get("data.unfollowUser.followersCount").Int())
}

func TestFollowUser_ConcurrentCallsKeepOneEdge(t *testing.T) {
	env, h := setup(t)
	a := env.CreateUser(t, "alice")
	b := env.CreateUser(t, "bob")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := testutil.Exec(t, h, a.ID, followMutation, map[string]interface{}{"id": b.ID})
			assert.False(t, res.Get("errors").Exists(), res.Raw)
		}()
	}
	wg.Wait()

	followers, err := env.Store.ListFollowers(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, followers)

	unread, err := env.Store.CountUnread(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread, "only the edge-creating call notifies")
}

func TestFollowThenUpdate_DeliversOneUserUpdated(t *testing.T) {
	env, h := setup(t)
	a := env.CreateUser(t, "alice")
	b := env.CreateUser(t, "bob")

	res := testutil.Exec(t, h, a.ID, followMutation, map[string]interface{}{"id": b.ID})
	require.False(t, res.Get("errors").Exists(), res.Raw)

	stream := testutil.Subscribe(t, h, a.ID, `subscription($id: ID!) { userUpdated(userId: $id) { id fullName bio } }`,
		map[string]interface{}{"id": b.ID})

	res = testutil.Exec(t, h, b.ID, `mutation { updateProfile(input: {fullName: "Bob Builder", bio: "can fix it"}) { id } }`, nil)
	require.False(t, res.Get("errors").Exists(), res.Raw)

	ev := stream.Next(wait)
	require.False(t, ev.Get("errors").Exists(), ev.Raw)
	assert.Equal(t, b.ID, ev.Get("data.userUpdated.id").String())
	assert.Equal(t, "Bob Builder", ev.Get("data.userUpdated.fullName").String())
	assert.Equal(t, "can fix it", ev.Get("data.userUpdated.bio").String())

	stream.ExpectNone(100 * time.Millisecond)
}

func TestUserSubscriptions_Gating(t *testing.T) {
	env, h := setup(t)
	a := env.CreateUser(t, "alice")
	b := env.CreateUser(t, "bob")
	query := `subscription($id: ID!) { userFollowed(userId: $id) { id } }`

	ev := testutil.Subscribe(t, h, "", query, map[string]interface{}{"id": b.ID}).Next(wait)
	assert.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(ev))

	ev = testutil.Subscribe(t, h, a.ID, query, map[string]interface{}{"id": b.ID}).Next(wait)
	assert.Equal(t, "FORBIDDEN", testutil.ErrorCode(ev))

	ev = testutil.Subscribe(t, h, a.ID, query, map[string]interface{}{"id": "ghost"}).Next(wait)
	assert.Equal(t, "NOT_FOUND", testutil.ErrorCode(ev))

	// bob watches his own followers
	own := testutil.Subscribe(t, h, b.ID, `subscription($id: ID!) { userFollowed(userId: $id) { id followers { id } } }`,
		map[string]interface{}{"id": b.ID})
	testutil.Exec(t, h, a.ID, followMutation, map[string]interface{}{"id": b.ID})
	ev = own.Next(wait)
	assert.Equal(t, b.ID, ev.Get("data.userFollowed.id").String())
	assert.Equal(t, []interface{}{a.ID}, ev.Get("data.userFollowed.followers.#.id").Value())
}

func TestVerifyEmail(t *testing.T) {
	env, h := setup(t)
	res := testutil.Exec(t, h, "", registerMutation, registerVars("hank"))
	id := res.Get("data.register.user.id").String()

	u, err := env.Store.GetUser(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, u.VerificationToken)

	res = testutil.Exec(t, h, "", `mutation { verifyEmail(token: "nope") }`, nil)
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))

	res = testutil.Exec(t, h, "", `mutation($t: String!) { verifyEmail(token: $t) }`, map[string]interface{}{"t": u.VerificationToken})
	assert.True(t, res.Get("data.verifyEmail").Bool())

	res = testutil.Exec(t, h, id, `{ me { isVerified } }`, nil)
	assert.True(t, res.Get("data.me.isVerified").Bool())
}

func TestPasswordReset(t *testing.T) {
	env, h := setup(t)
	u := env.CreateUser(t, "ivy")

	res := testutil.Exec(t, h, "", `mutation { forgotPassword(email: "unknown@example.com") }`, nil)
	assert.True(t, res.Get("data.forgotPassword").Bool())
	assert.Empty(t, env.Mail.Sent())

	res = testutil.Exec(t, h, "", `mutation { forgotPassword(email: "ivy@example.com") }`, nil)
	require.True(t, res.Get("data.forgotPassword").Bool(), res.Raw)

	stored, err := env.Store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ResetPasswordToken)
	sent := env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.Contains(sent[0].Body, stored.ResetPasswordToken))

	reset := `mutation($t: String!, $p: String!) { resetPassword(token: $t, password: $p) }`
	res = testutil.Exec(t, h, "", reset, map[string]interface{}{"t": "bogus", "p": "newpass1"})
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))

	// the reset tier allows three attempts per window
	res = testutil.Exec(t, h, "", reset, map[string]interface{}{"t": stored.ResetPasswordToken, "p": "newpass1"})
	assert.Equal(t, "RATE_LIMITED", testutil.ErrorCode(res))
}

func TestResetPassword_Succeeds(t *testing.T) {
	env, h := setup(t)
	u := env.CreateUser(t, "jack")

	testutil.Exec(t, h, "", `mutation { forgotPassword(email: "jack@example.com") }`, nil)
	stored, err := env.Store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)

	res := testutil.Exec(t, h, "", `mutation($t: String!) { resetPassword(token: $t, password: "newpass1") }`,
		map[string]interface{}{"t": stored.ResetPasswordToken})
	require.True(t, res.Get("data.resetPassword").Bool(), res.Raw)

	login := testutil.Exec(t, h, "", loginMutation, map[string]interface{}{"email": "jack@example.com", "password": "newpass1"})
	assert.Equal(t, u.ID, login.Get("data.login.user.id").String())
}

func TestDeleteAccount(t *testing.T) {
	env, h := setup(t)
	a := env.CreateUser(t, "kate")
	b := env.CreateUser(t, "liam")
	testutil.Exec(t, h, a.ID, followMutation, map[string]interface{}{"id": b.ID})

	res := testutil.Exec(t, h, a.ID, `mutation { deleteAccount }`, nil)
	require.True(t, res.Get("data.deleteAccount").Bool(), res.Raw)

	res = testutil.Exec(t, h, a.ID, `{ me { id } }`, nil)
	assert.Equal(t, "NOT_FOUND", testutil.ErrorCode(res))

	followers, err := env.Store.ListFollowers(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestMaintenance_PurgeResetTokens(t *testing.T) {
	env := testutil.NewEnv(t)
	u := env.CreateUser(t, "mia")
	expired := time.Now().UTC().Add(-time.Minute)
	u.ResetPasswordToken = "stale"
	u.ResetPasswordExpires = &expired
	_, err := env.Store.UpdateUser(context.Background(), u)
	require.NoError(t, err)

	m, err := NewMaintenance(env.Store, env.Deps.Logger)
	require.NoError(t, err)
	n, err := m.PurgeResetTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := env.Store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordToken)
}

func TestNew_ServesStandardRoutes(t *testing.T) {
	env := testutil.NewEnv(t)
	base, _, err := New(env.Deps)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	base.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"auth"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ me { id } }"}`))
	req.Header.Set("Content-Type", "application/json")
	base.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "UNAUTHENTICATED", gjson.Get(rec.Body.String(), "errors.0.extensions.code").String())
}
