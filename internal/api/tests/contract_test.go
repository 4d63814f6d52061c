package api_test

import (
	"net/http"
	"testing"

	"github.com/quillsign/quillsign-server/internal/api/testutils"
	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dataMap extracts the envelope's data field as a JSON object
func dataMap(t *testing.T, resp models.Response) map[string]interface{} {
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "Expected object data in response")
	return m
}

// setupContractFixture creates a client, folder and two signees over the API
// and returns their ids
func setupContractFixture(t *testing.T, testCtx *testutils.TestContext) (clientID, folderID string, signeeIDs []string) {
	headers := testutils.AuthHeaders(testCtx.TestUserJWT)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/client/create-update",
		models.ClientRequest{Name: "Globex"}, headers)
	require.Equal(t, http.StatusOK, w.Code)
	clientID = dataMap(t, testutils.DecodeResponse(t, w))["id"].(string)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/folder/create",
		models.FolderRequest{Name: "Deals"}, headers)
	require.Equal(t, http.StatusOK, w.Code)
	folderID = dataMap(t, testutils.DecodeResponse(t, w))["id"].(string)

	for _, s := range []models.SigneeRequest{
		{ClientID: clientID, Name: "Alice", Email: "alice@globex.test"},
		{ClientID: clientID, Name: "Bob", Email: "bob@globex.test"},
	} {
		w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/signee/create-update", s, headers)
		require.Equal(t, http.StatusOK, w.Code)
		signeeIDs = append(signeeIDs, dataMap(t, testutils.DecodeResponse(t, w))["id"].(string))
	}

	return clientID, folderID, signeeIDs
}

func TestContractLifecycle(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	headers := testutils.AuthHeaders(testCtx.TestUserJWT)

	clientID, folderID, signeeIDs := setupContractFixture(t, testCtx)

	// Create a draft
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/contract/create-update",
		models.ContractRequest{
			ClientID:  clientID,
			FolderID:  folderID,
			Title:     "Master Services Agreement",
			Content:   "The parties agree as follows.",
			SigneeIDs: signeeIDs,
		}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	created := dataMap(t, testutils.DecodeResponse(t, w))
	assert.Equal(t, true, created["editable"])
	contract := created["contract"].(map[string]interface{})
	contractID := contract["id"].(string)
	assert.Equal(t, "draft", contract["status"])

	// Send it for signing
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/contract/send",
		models.ContractActionRequest{ContractID: contractID}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	sent := dataMap(t, testutils.DecodeResponse(t, w))
	assert.Equal(t, "sent_for_signing", sent["status"])
	notified := sent["notified"].([]interface{})
	require.Len(t, notified, 2)

	// One signee submits through the public endpoint
	bindingID := notified[0].(string)
	signToken, err := testCtx.Tokens.Generate(bindingID)
	require.NoError(t, err)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/public/contract/submit",
		models.SubmitSignatureRequest{
			Token:         signToken,
			SignedContent: "The parties agree as follows. [signed]",
			Signature:     "Alice",
			SignatureType: "text",
		}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Signing twice is rejected
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/public/contract/submit",
		models.SubmitSignatureRequest{
			Token:         signToken,
			SignedContent: "again",
			Signature:     "Alice",
			SignatureType: "text",
		}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The audit trail is visible to the account
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/contract/list-logs?contractId="+contractID, nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutils.DecodeResponse(t, w)
	logs := resp.Data.([]interface{})
	assert.GreaterOrEqual(t, len(logs), 3)

	// Listing shows the contract
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/contract/list?clientId="+clientID, nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	list := dataMap(t, testutils.DecodeResponse(t, w))
	assert.Equal(t, float64(1), list["total"])
}

func TestContractNotFoundEnvelope(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	headers := testutils.AuthHeaders(testCtx.TestUserJWT)

	// A missing contract answers 200 with status false, not 404
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/contract/send",
		models.ContractActionRequest{ContractID: "does-not-exist"}, headers)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := testutils.DecodeResponse(t, w)
	assert.False(t, resp.Status)
}

func TestPublicViewEndpoint(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	headers := testutils.AuthHeaders(testCtx.TestUserJWT)

	clientID, folderID, signeeIDs := setupContractFixture(t, testCtx)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/contract/create-update",
		models.ContractRequest{
			ClientID:  clientID,
			FolderID:  folderID,
			Title:     "NDA",
			Content:   "Keep it quiet.",
			SigneeIDs: signeeIDs[:1],
		}, headers)
	require.Equal(t, http.StatusOK, w.Code)
	created := dataMap(t, testutils.DecodeResponse(t, w))
	contractID := created["contract"].(map[string]interface{})["id"].(string)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/contract/send",
		models.ContractActionRequest{ContractID: contractID}, headers)
	require.Equal(t, http.StatusOK, w.Code)
	notified := dataMap(t, testutils.DecodeResponse(t, w))["notified"].([]interface{})
	require.Len(t, notified, 1)

	viewToken, err := testCtx.Tokens.Generate(notified[0].(string))
	require.NoError(t, err)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/public/contract/view?token="+viewToken, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	viewed := dataMap(t, testutils.DecodeResponse(t, w))
	assert.Equal(t, "NDA", viewed["contract"].(map[string]interface{})["title"])

	// A bad token is rejected
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/public/contract/view?token=garbage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Track-open writes an audit entry
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/public/contract/track-open",
		models.TrackOpenRequest{Token: viewToken}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
