package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"pillsync/internal/adapters/gateway/mock"
	"pillsync/internal/app"
	"pillsync/internal/domain/alarms"
	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/schedule"
	"pillsync/internal/router"
)

func TestHTTP_EndToEnd_CaregiverScopes(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	ownerID := "owner-1"
	caregiverID := "caregiver-1"

	// 1) Owner crea paciente y configura el slot 1
	patientID := createPatient(t, ts.URL, ownerID, map[string]any{"name": "Rosa", "age": 72})
	configureSlot(t, ts.URL, ownerID, patientID, 1, map[string]any{
		"label":         "Heart Meds",
		"medicine_name": "Atorvastatin",
		"pill_count":    2,
		"schedule":      []string{"08:00"},
	})

	// 2) Cuidador NO puede ver el paciente aún
	{
		st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID, caregiverID, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 before grant, got %d", st)
		}
	}

	// 3) Owner invita como helper; el cuidador canjea el código
	grantID, code := inviteCaregiver(t, ts.URL, ownerID, patientID, map[string]any{
		"label": "Hija",
		"role":  string(caregivers.RoleHelper),
	})
	{
		st, body := doReq(t, ts.URL, "POST", "/caregivers/redeem", caregiverID, map[string]any{"code": code})
		if st != http.StatusOK || !strings.Contains(string(body), `"status":"active"`) {
			t.Fatalf("expected 200 redeem, got %d body=%s", st, string(body))
		}
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/me/patients", caregiverID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), patientID) {
			t.Fatalf("expected shared patient, got %d body=%s", st, string(body))
		}
	}
	{
		// el dashboard del owner lista al cuidador
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/dashboard", ownerID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"label":"Hija"`) {
			t.Fatalf("expected caregiver in owner dashboard, got %d body=%s", st, string(body))
		}
	}

	// 4) Cuidador ve el dashboard y marca la dosis de hoy
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/dashboard", caregiverID, nil)
		if st != http.StatusOK || strings.Contains(string(body), `"caregivers"`) {
			t.Fatalf("expected 200 dashboard without caregivers list, got %d body=%s", st, string(body))
		}
	}
	dose := string(schedule.NewDoseID(time.Now(), 1, 0))
	{
		st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/doses/take", caregiverID, map[string]any{"dose_id": dose})
		if st != http.StatusOK {
			t.Fatalf("expected 200 take dose, got %d body=%s", st, string(body))
		}
		var snap struct {
			PillCount int  `json:"pill_count"`
			Taken     bool `json:"taken"`
		}
		_ = json.Unmarshal(body, &snap)
		if !snap.Taken || snap.PillCount != 1 {
			t.Fatalf("unexpected snapshot after take: %s", string(body))
		}
	}

	// 5) Sin patient:configure no puede tocar slots
	{
		st, _ := doReq(t, ts.URL, "PUT", "/patients/"+patientID+"/slots/2", caregiverID, map[string]any{
			"label":         "Extra",
			"medicine_name": "Aspirin",
			"pill_count":    10,
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 configure slot without scope, got %d", st)
		}
	}

	// 6) El historial muestra la toma con el cuidador como actor
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/history?types=DOSE_TAKEN", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 history, got %d body=%s", st, string(body))
		}
		var events []struct {
			Type    string `json:"type"`
			DoseID  string `json:"dose_id"`
			ActorID string `json:"actor_id"`
		}
		_ = json.Unmarshal(body, &events)
		if len(events) != 1 || events[0].DoseID != dose || events[0].ActorID != caregiverID {
			t.Fatalf("unexpected history: %s", string(body))
		}
	}

	// 7) Owner revoca: el cuidador pierde acceso inmediatamente
	{
		st, body := doReq(t, ts.URL, "DELETE", "/patients/"+patientID+"/caregivers/"+grantID, ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 revoke grant by owner, got %d body=%s", st, string(body))
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID, caregiverID, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 after revoke, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/doses/undo", caregiverID, map[string]any{"dose_id": dose})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 undo after revoke, got %d", st)
		}
	}
}

func TestHTTP_InviteCaregiver_RejectsUnknownScope(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	ownerID := "owner-1"
	patientID := createPatient(t, ts.URL, ownerID, map[string]any{"name": "Rosa"})

	// scope inválido => 400
	st, _ := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/caregivers", ownerID, map[string]any{
		"label":  "Hija",
		"scopes": []string{"patient:read", "patient:unknown"},
	})
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scope, got %d", st)
	}

	// un cuidador no puede invitar a otros
	if st, _ := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/caregivers", "caregiver-1", map[string]any{"label": "x"}); st != http.StatusForbidden {
		t.Fatalf("expected 403 invite by non-owner, got %d", st)
	}
}

func TestHTTP_AlarmConfirmTakesDose(t *testing.T) {
	a := app.New(app.Options{
		Gateway:      mock.New(nil, mock.Options{ScanDelay: -1, RefreshDelay: -1}),
		SuccessDelay: 10 * time.Millisecond,
	})
	defer a.Close()

	ts := httptest.NewServer(router.NewRouter(router.Options{App: a}))
	defer ts.Close()

	ownerID := "owner-1"
	patientID := createPatient(t, ts.URL, ownerID, map[string]any{"name": "Rosa"})
	configureSlot(t, ts.URL, ownerID, patientID, 1, map[string]any{
		"label":         "Diabetes",
		"medicine_name": "Metformin",
		"pill_count":    4,
		"schedule":      []string{"09:00"},
	})

	if st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alarm/", ownerID, nil); st != http.StatusNotFound {
		t.Fatalf("expected 404 without alarm, got %d", st)
	}

	dose := schedule.NewDoseID(time.Now(), 1, 0)
	if _, err := a.Alarms.Activate(context.Background(), alarms.ActivateInput{
		PatientID:    patientID,
		SlotID:       1,
		DoseID:       dose,
		MedicineName: "Metformin",
	}); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alarm/", ownerID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"step":"RINGING"`) {
			t.Fatalf("expected ringing alarm, got %d body=%s", st, string(body))
		}
	}
	// confirmar antes de apagar es una transición inválida
	if st, _ := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/alarm/confirm", ownerID, nil); st != http.StatusConflict {
		t.Fatalf("expected 409 confirm while ringing, got %d", st)
	}
	for _, action := range []string{"turn_off", "confirm"} {
		st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/alarm/"+action, ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 %s, got %d body=%s", action, st, string(body))
		}
	}

	// tras el delay de SUCCESS la dosis queda tomada y la alarma cerrada
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/doses/taken", ownerID, nil)
		st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alarm/", ownerID, nil)
		if strings.Contains(string(body), string(dose)) && st == http.StatusNotFound {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dose not taken after confirm: taken=%s alarm=%d", string(body), st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// el lunes 19/10/2026 a las 08:00: el heartbeat dispara la dosis de ese minuto
var heartbeatMorning = time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)

// pairedPatient arma una app con reloj fijo y un paciente emparejado con el
// slot 1 a las 08:00 y 5 pastillas.
func pairedPatient(t *testing.T) (*app.App, *httptest.Server, string) {
	t.Helper()

	a := app.New(app.Options{
		Gateway:      mock.New(nil, mock.Options{ScanDelay: -1, RefreshDelay: -1}),
		SuccessDelay: 10 * time.Millisecond,
		Now:          func() time.Time { return heartbeatMorning },
	})
	t.Cleanup(func() { _ = a.Close() })

	ts := httptest.NewServer(router.NewRouter(router.Options{App: a}))
	t.Cleanup(ts.Close)

	patientID := createPatient(t, ts.URL, "owner-1", map[string]any{"name": "Rosa"})
	configureSlot(t, ts.URL, "owner-1", patientID, 1, map[string]any{
		"label":         "Presión",
		"medicine_name": "Losartan",
		"pill_count":    5,
		"schedule":      []string{"08:00"},
	})
	if st, body := doReq(t, ts.URL, "PUT", "/patients/"+patientID+"/device", "owner-1", map[string]any{"device_id": "dev-1"}); st != http.StatusOK {
		t.Fatalf("expected 200 pair, got %d body=%s", st, string(body))
	}

	if fired := a.Heartbeat.Tick(context.Background()); fired != 1 {
		t.Fatalf("expected 1 alarm fired, got %d", fired)
	}
	// el mismo minuto no vuelve a disparar
	if fired := a.Heartbeat.Tick(context.Background()); fired != 0 {
		t.Fatalf("expected no second alarm, got %d", fired)
	}
	return a, ts, patientID
}

type dashboardView struct {
	Slots []struct {
		Slot struct {
			ID        int `json:"id"`
			PillCount int `json:"pill_count"`
		} `json:"slot"`
	} `json:"slots"`
	Today []struct {
		ID    string `json:"id"`
		Taken bool   `json:"taken"`
	} `json:"today"`
	TakenCount int `json:"taken_count"`
}

// slotOneState devuelve el stock del slot 1 y si la dosis de hoy figura tomada.
func slotOneState(t *testing.T, baseURL, patientID string) (int, bool) {
	t.Helper()

	st, body := doReq(t, baseURL, "GET", "/patients/"+patientID+"/dashboard", "owner-1", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 dashboard, got %d body=%s", st, string(body))
	}
	var view dashboardView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}

	count := -1
	for _, s := range view.Slots {
		if s.Slot.ID == 1 {
			count = s.Slot.PillCount
		}
	}
	dose := string(schedule.NewDoseID(heartbeatMorning, 1, 0))
	taken := false
	found := false
	for _, d := range view.Today {
		if d.ID == dose {
			found = true
			taken = d.Taken
		}
	}
	if !found {
		t.Fatalf("dose %s missing from today: %s", dose, string(body))
	}
	return count, taken
}

func TestHTTP_HeartbeatAlarm_ConfirmTakesDose(t *testing.T) {
	_, ts, patientID := pairedPatient(t)

	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alarm/", "owner-1", nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"step":"RINGING"`) {
			t.Fatalf("expected ringing alarm, got %d body=%s", st, string(body))
		}
	}
	if count, taken := slotOneState(t, ts.URL, patientID); count != 5 || taken {
		t.Fatalf("expected 5 pills and pending dose while ringing, got %d taken=%v", count, taken)
	}

	for _, action := range []string{"turn_off", "confirm"} {
		if st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/alarm/"+action, "owner-1", nil); st != http.StatusOK {
			t.Fatalf("expected 200 %s, got %d body=%s", action, st, string(body))
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		count, taken := slotOneState(t, ts.URL, patientID)
		if count == 4 && taken {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 4 pills and dose taken after confirm, got %d taken=%v", count, taken)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alarm/", "owner-1", nil); st != http.StatusNotFound {
		t.Fatalf("expected alarm closed, got %d", st)
	}
}

func TestHTTP_HeartbeatAlarm_NotYetLeavesDosePending(t *testing.T) {
	a, ts, patientID := pairedPatient(t)

	for _, action := range []string{"turn_off", "not_yet"} {
		if st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/alarm/"+action, "owner-1", nil); st != http.StatusOK {
			t.Fatalf("expected 200 %s, got %d body=%s", action, st, string(body))
		}
	}
	if st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alarm/", "owner-1", nil); st != http.StatusNotFound {
		t.Fatalf("expected alarm closed after not_yet, got %d", st)
	}

	// pasado el SuccessDelay tampoco aparece una toma
	time.Sleep(50 * time.Millisecond)
	if count, taken := slotOneState(t, ts.URL, patientID); count != 5 || taken {
		t.Fatalf("expected 5 pills and pending dose after not_yet, got %d taken=%v", count, taken)
	}

	// la clave del minuto ya está reclamada: no vuelve a sonar
	if fired := a.Heartbeat.Tick(context.Background()); fired != 0 {
		t.Fatalf("expected no re-fire within the same minute, got %d", fired)
	}
}

func TestHTTP_LearningOnboarding(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	if st, _ := doReq(t, ts.URL, "GET", "/learning/catalog", "", nil); st != http.StatusOK {
		t.Fatalf("expected 200 catalog, got %d", st)
	}

	st, body := doReq(t, ts.URL, "POST", "/learning/students", "", map[string]any{
		"name":    "Juan",
		"school":  "Mabolo National High School",
		"grade":   "Grade 5",
		"quarter": "Quarter 2",
		"subject": "Biology",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 onboard, got %d body=%s", st, string(body))
	}
	var student struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &student)

	if st, _ := doReq(t, ts.URL, "POST", "/learning/students", "", map[string]any{"name": "Juan", "grade": "Grade 99"}); st != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid grade, got %d", st)
	}

	st, body = doReq(t, ts.URL, "PUT", "/learning/students/"+student.ID+"/modules", "", map[string]any{"module_ids": []string{"1", "2"}})
	if st != http.StatusOK || !strings.Contains(string(body), `"id":"2"`) {
		t.Fatalf("expected modules selected, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/learning/lessons/1/quiz", "", nil)
	if st != http.StatusOK || !strings.Contains(string(body), "BIO5-Q2-L1") {
		t.Fatalf("expected quiz, got %d body=%s", st, string(body))
	}
	if st, _ := doReq(t, ts.URL, "GET", "/learning/lessons/9", "", nil); st != http.StatusNotFound {
		t.Fatalf("expected 404 unknown lesson, got %d", st)
	}
}

func TestHTTP_Health(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	st, body := doReq(t, ts.URL, "GET", "/health", "", nil)
	if st != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health: %d %s", st, string(body))
	}
}

func createPatient(t *testing.T, baseURL, userID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/patients", userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create patient, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("create patient: missing id body=%s", string(body))
	}
	return resp.ID
}

func configureSlot(t *testing.T, baseURL, userID, patientID string, slotID int, payload map[string]any) {
	t.Helper()

	path := "/patients/" + patientID + "/slots/" + strconv.Itoa(slotID)
	st, body := doReq(t, baseURL, "PUT", path, userID, payload)
	if st != http.StatusOK {
		t.Fatalf("expected 200 configure slot, got %d body=%s", st, string(body))
	}
}

func inviteCaregiver(t *testing.T, baseURL, ownerID, patientID string, payload map[string]any) (string, string) {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/patients/"+patientID+"/caregivers", ownerID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 invite caregiver, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" || resp.Code == "" {
		t.Fatalf("invite caregiver: missing id/code body=%s", string(body))
	}
	return resp.ID, resp.Code
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
