package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/require"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/checkin"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/evidence"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/issuance"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/liveproof"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/middleware"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/mintworker"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/service"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/testutil"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/mint"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/token"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(7, 1); err != nil {
		panic(err)
	}
	if err := token.Init("router-test-secret", time.Hour, 24*time.Hour); err != nil {
		panic(err)
	}
	if err := middleware.Init(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testServer struct {
	h      *server.Hertz
	client *mint.MockClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	ev, err := evidence.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ev.Close() })

	events := repository.NewEventRepository(db)
	achievements := repository.NewAchievementRepository(db)
	machine := issuance.New(achievements)

	tokens, err := liveproof.NewService([]byte("0123456789abcdef0123456789abcdef"), events, liveproof.NewMemoryNonceStore())
	require.NoError(t, err)

	client := mint.NewMockClient()
	worker := mintworker.New(machine, events, client, mintworker.NewLocalLocker(), mintworker.Config{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	service.Init(service.Dependencies{
		Tokens:     tokens,
		Limiter:    ratelimit.New(ratelimit.NewMemoryStore()),
		CheckIns:   checkin.NewStore(repository.NewCheckInRepository(db), ev, 0),
		Machine:    machine,
		Directory:  events,
		Parked:     achievements,
		Dispatcher: mintworker.InlineDispatcher{Worker: worker},
	})

	require.NoError(t, db.Create(&model.Event{BaseModel: model.BaseModel{ID: 10}, OrganizerID: "org-1", Title: "Meetup"}).Error)
	require.NoError(t, db.Create(&model.Badge{BaseModel: model.BaseModel{ID: 20}, Name: "Attendee", Rarity: model.RarityLegendary,
		TokenStandard: model.TokenStandardERC721, MetadataURI: "ipfs://badge/20"}).Error)

	h := server.New()
	Register(h)
	return &testServer{h: h, client: client}
}

func bearer(t *testing.T, userID, role string) ut.Header {
	t.Helper()
	tok, _, err := token.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return ut.Header{Key: "Authorization", Value: "Bearer " + tok}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...ut.Header) (int, []byte) {
	t.Helper()

	var reqBody *ut.Body
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = &ut.Body{Body: bytes.NewReader(b), Len: len(b)}
		headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	}

	w := ut.PerformRequest(s.h.Engine, method, path, reqBody, headers...)
	resp := w.Result()
	return resp.StatusCode(), resp.Body()
}

func decodeData(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeError(t *testing.T, body []byte) response.ErrorDetail {
	t.Helper()
	var envelope response.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Error
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "ok")
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodPost, "/v1/liveproof/start", dto.StartLiveProofRequest{EventID: "10"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", decodeError(t, body).Code)
}

func TestAttendeeCannotStartLiveProof(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/v1/liveproof/start", dto.StartLiveProofRequest{EventID: "10"},
		bearer(t, "user-1", token.RoleAttendee))
	require.Equal(t, http.StatusForbidden, status)
}

func TestCheckInToMintedAchievement(t *testing.T) {
	s := newTestServer(t)
	organizer := bearer(t, "org-1", token.RoleOrganizer)
	attendee := bearer(t, "user-1", token.RoleAttendee)

	status, body := s.do(t, http.MethodPost, "/v1/liveproof/start", dto.StartLiveProofRequest{EventID: "10"}, organizer)
	require.Equal(t, http.StatusOK, status, string(body))
	var start dto.StartLiveProofResponse
	decodeData(t, body, &start)
	require.NotEmpty(t, start.QRToken)

	verify := dto.VerifyLiveProofRequest{
		QRToken:             start.QRToken,
		Evidence:            []byte("jpeg-bytes"),
		EvidenceContentType: "image/jpeg",
		Geolocation:         model.Geolocation{Lat: 37.77, Lng: -122.41, AccuracyM: 12},
		DeviceFingerprint:   "device-1",
	}
	status, body = s.do(t, http.MethodPost, "/v1/liveproof/verify", verify, attendee)
	require.Equal(t, http.StatusCreated, status, string(body))
	var verified dto.VerifyLiveProofResponse
	decodeData(t, body, &verified)
	require.Equal(t, dto.NextActionIssueAchievement, verified.NextAction)

	// 同一个令牌不能再用
	status, body = s.do(t, http.MethodPost, "/v1/liveproof/verify", verify, attendee)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "TOKEN_REPLAYED", decodeError(t, body).Code)

	issue := dto.IssueAchievementRequest{EventID: "10", AttendeeID: "user-1", BadgeID: "20", CheckInID: verified.CheckInID}
	status, body = s.do(t, http.MethodPost, "/v1/achievements/issue", issue, organizer)
	require.Equal(t, http.StatusCreated, status, string(body))
	var issued dto.IssueAchievementResponse
	decodeData(t, body, &issued)
	require.Equal(t, dto.NextActionMintNFT, issued.NextAction)

	// 没有钱包，铸造被挂起
	status, body = s.do(t, http.MethodGet, "/v1/achievements/"+issued.AchievementID, nil, attendee)
	require.Equal(t, http.StatusOK, status, string(body))
	var view dto.AchievementView
	decodeData(t, body, &view)
	require.Equal(t, string(model.AchievementStatusPending), view.Status)
	require.Equal(t, dto.NextActionConnectWallet, view.NextAction)
	require.NotNil(t, view.ParkedReason)
	require.Zero(t, s.client.CallCount())

	// 重复发放返回已有成就
	status, body = s.do(t, http.MethodPost, "/v1/achievements/issue", issue, organizer)
	require.Equal(t, http.StatusOK, status, string(body))
	var again dto.IssueAchievementResponse
	decodeData(t, body, &again)
	require.Equal(t, issued.AchievementID, again.AchievementID)
	require.Equal(t, dto.NextActionConnectWallet, again.NextAction)

	status, body = s.do(t, http.MethodPut, "/v1/me/wallet",
		dto.ConnectWalletRequest{WalletAddress: "0x52908400098527886E0F7030069857D2E4169EE7"}, attendee)
	require.Equal(t, http.StatusOK, status, string(body))
	var connected dto.ConnectWalletResponse
	decodeData(t, body, &connected)
	require.Equal(t, 1, connected.Resumed)

	status, body = s.do(t, http.MethodGet, "/v1/achievements/"+issued.AchievementID, nil, attendee)
	require.Equal(t, http.StatusOK, status, string(body))
	decodeData(t, body, &view)
	require.Equal(t, string(model.AchievementStatusMinted), view.Status)
	require.Equal(t, dto.NextActionNone, view.NextAction)
	require.NotNil(t, view.TxHash)
	require.Positive(t, view.ProofScore)
	require.Equal(t, 1, s.client.CallCount())

	// 终态不能重试
	status, body = s.do(t, http.MethodPost, "/v1/achievements/"+issued.AchievementID+"/retry", nil, attendee)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "INVALID_TRANSITION", decodeError(t, body).Code)
}

func TestIssueRejectsMalformedIDs(t *testing.T) {
	s := newTestServer(t)
	organizer := bearer(t, "org-1", token.RoleOrganizer)

	status, body := s.do(t, http.MethodPost, "/v1/achievements/issue",
		dto.IssueAchievementRequest{EventID: "10", AttendeeID: "user-1", BadgeID: "20", CheckInID: "0"}, organizer)
	require.Equal(t, http.StatusBadRequest, status)
	e := decodeError(t, body)
	require.Equal(t, "INVALID_REQUEST", e.Code)
	require.Contains(t, e.Details, "checkin_id")
}

func TestGetCheckInNotFound(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/v1/checkins/12345", nil, bearer(t, "user-1", token.RoleAttendee))
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "CHECKIN_NOT_FOUND", decodeError(t, body).Code)
}
