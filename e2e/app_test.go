package e2e

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var codePattern = regexp.MustCompile(`is: (\d{6})`)

// E2ETestSuite provides a test suite for end-to-end tests
type E2ETestSuite struct {
	suite.Suite
	pw  *playwright.Playwright
	api playwright.APIRequestContext
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

// SetupTest runs before each test with a fresh cookie jar
func (suite *E2ETestSuite) SetupTest() {
	api, err := suite.pw.Request.NewContext(playwright.APIRequestNewContextOptions{
		BaseURL: playwright.String(appURL),
	})
	require.NoError(suite.T(), err, "could not create request context")
	suite.api = api
}

// TearDownTest runs after each test
func (suite *E2ETestSuite) TearDownTest() {
	if suite.api != nil {
		suite.api.Dispose()
	}
}

// latestCode returns the code from the newest mail dropped for email.
func (suite *E2ETestSuite) latestCode(email string) string {
	entries, err := os.ReadDir(mailDir)
	require.NoError(suite.T(), err, "mail drop directory missing")

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".eml") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(mailDir, name))
		require.NoError(suite.T(), err)
		if !strings.Contains(string(raw), "To: "+email+"\r\n") {
			continue
		}
		m := codePattern.FindStringSubmatch(string(raw))
		require.Len(suite.T(), m, 2, "mail %s carries no code", name)
		return m[1]
	}
	suite.T().Fatalf("no mail for %s", email)
	return ""
}

func (suite *E2ETestSuite) login(email string) {
	resp, err := suite.api.Post("/api/auth/challenge", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"email": email},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 202, resp.Status(), "challenge not accepted")

	resp, err = suite.api.Post("/api/auth/verify", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"email": email, "code": suite.latestCode(email)},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 200, resp.Status(), "verify failed")
}

func (suite *E2ETestSuite) addExpense(amount, category, description string) int64 {
	resp, err := suite.api.Post("/api/expenses", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"amount": amount, "category": category, "description": description},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 201, resp.Status(), "failed to create expense")

	var created struct {
		ID int64 `json:"expense_id"`
	}
	require.NoError(suite.T(), resp.JSON(&created))
	return created.ID
}

func (suite *E2ETestSuite) TestCompleteUserFlow() {
	// Login
	suite.login("flow@example.com")

	resp, err := suite.api.Get("/api/me")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 200, resp.Status())

	// Create expenses
	suite.addExpense("150.00", "Food", "Lunch Test")
	travel := suite.addExpense("50.00", "Travel", "Bus")

	// Verify the list and its total
	resp, err = suite.api.Get("/api/expenses")
	require.NoError(suite.T(), err)
	var list struct {
		Count int    `json:"count"`
		Total string `json:"total"`
	}
	require.NoError(suite.T(), resp.JSON(&list))
	assert.Equal(suite.T(), 2, list.Count)
	assert.Equal(suite.T(), "200", list.Total)

	// Update one expense
	resp, err = suite.api.Put("/api/expenses/"+itoa(travel), playwright.APIRequestContextPutOptions{
		Data: map[string]string{"amount": "45.50", "category": "Travel", "description": "Train"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 200, resp.Status())

	// Dashboard
	resp, err = suite.api.Get("/api/reports/overview")
	require.NoError(suite.T(), err)
	var overview struct {
		Summary struct {
			Total string `json:"total"`
			Count int    `json:"count"`
		} `json:"summary"`
		Budget struct {
			Exceeded bool `json:"exceeded"`
		} `json:"budget"`
	}
	require.NoError(suite.T(), resp.JSON(&overview))
	assert.Equal(suite.T(), "195.5", overview.Summary.Total)
	assert.Equal(suite.T(), 2, overview.Summary.Count)
	assert.False(suite.T(), overview.Budget.Exceeded)

	// CSV export of the Food view
	resp, err = suite.api.Get("/api/expenses/export.csv", playwright.APIRequestContextGetOptions{
		Params: map[string]interface{}{"category": "Food"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 200, resp.Status())
	body, err := resp.Text()
	require.NoError(suite.T(), err)
	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(suite.T(), err)
	require.Len(suite.T(), records, 2)
	assert.Equal(suite.T(), "Lunch Test", records[1][4])

	// Clear this month
	resp, err = suite.api.Delete("/api/expenses/current-month")
	require.NoError(suite.T(), err)
	var purge struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(suite.T(), resp.JSON(&purge))
	assert.Equal(suite.T(), 2, purge.Deleted)

	// Logout ends the session
	resp, err = suite.api.Post("/api/auth/logout")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 204, resp.Status())

	resp, err = suite.api.Get("/api/me")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 401, resp.Status())
}

func (suite *E2ETestSuite) TestCodeCannotBeReused() {
	email := "reuse@example.com"
	resp, err := suite.api.Post("/api/auth/challenge", playwright.APIRequestContextPostOptions{
		Data: map[string]string{"email": email},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 202, resp.Status())

	code := suite.latestCode(email)
	verify := playwright.APIRequestContextPostOptions{
		Data: map[string]string{"email": email, "code": code},
	}

	resp, err = suite.api.Post("/api/auth/verify", verify)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 200, resp.Status())

	resp, err = suite.api.Post("/api/auth/verify", verify)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 401, resp.Status())
}

func (suite *E2ETestSuite) TestUsersAreIsolated() {
	suite.login("owner@example.com")
	id := suite.addExpense("10.00", "Rent", "Mine")

	suite.api.Dispose()
	api, err := suite.pw.Request.NewContext(playwright.APIRequestNewContextOptions{BaseURL: playwright.String(appURL)})
	require.NoError(suite.T(), err)
	suite.api = api

	suite.login("intruder@example.com")
	resp, err := suite.api.Delete("/api/expenses/" + itoa(id))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 403, resp.Status())
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
