// Package main runs E2E tests of the clinic booking flow against a live API.
//
// Scenarios cover:
//   - Happy-path booking with queue number assignment
//   - Duplicate phone / duplicate name / slot taken rejections
//   - Sunday and leave-day closure
//   - Live queue projection after bookings advance
//   - Admin leave management and appointment lifecycle
//
// Usage:
//
//	ADMIN_PASSWORD=... API_BASE_URL=... go run scripts/e2e/run_e2e.go [scenario-name]
//	ADMIN_PASSWORD=... API_BASE_URL=... go run scripts/e2e/run_e2e.go            # runs all
//	ADMIN_PASSWORD=... API_BASE_URL=... go run scripts/e2e/run_e2e.go happy-path # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

const testPhonePrefix = "98000"

var (
	apiBase  string
	adminJWT string

	// bookingDate is the next non-Sunday day so the runs never trip the
	// past-date check, the weekly holiday, or the live clinic day.
	bookingDate = nextOpenDate()
)

// ---------------------------------------------------------------------------
// Scenario definition
// ---------------------------------------------------------------------------

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func login() error {
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	body, _ := json.Marshal(map[string]string{"password": password})
	resp, err := http.Post(apiBase+"/admin/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login returned %d: %s", resp.StatusCode, string(raw))
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	adminJWT = out.Token
	return nil
}

func book(name, phone, slot string) (int, map[string]interface{}, error) {
	payload := map[string]string{
		"name":  name,
		"phone": phone,
		"date":  bookingDate,
		"time":  slot,
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(apiBase+"/appointments", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

func adminDo(method, path string, payload interface{}) (int, map[string]interface{}, error) {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, apiBase+path, body)
	req.Header.Set("Authorization", "Bearer "+adminJWT)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

func nextOpenDate() string {
	day := time.Now().AddDate(0, 0, 1)
	if day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format("2006-01-02")
}

func uniquePhone(n int) string {
	return fmt.Sprintf("%s%05d", testPhonePrefix, time.Now().Unix()%100000+int64(n))
}

func rejectionReason(body map[string]interface{}) string {
	reason, _ := body["reason"].(string)
	return reason
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func happyPath(t *T) {
	phone := uniquePhone(1)
	status, appt, err := book("E2E Patient One", phone, "07:00 PM")
	if err != nil {
		t.fatalf("book: %v", err)
		return
	}
	t.check("booking returns 201", status == http.StatusCreated)
	t.check("queue number assigned", appt["queueNumber"] != nil)
	t.check("status is Pending", appt["status"] == "Pending")
}

func duplicateRejections(t *T) {
	phone := uniquePhone(2)
	if status, _, err := book("E2E Patient Two", phone, "07:10 PM"); err != nil || status != http.StatusCreated {
		t.fatalf("seed booking failed: status=%d err=%v", status, err)
		return
	}

	status, body, _ := book("Someone Else", phone, "07:20 PM")
	t.check("same phone rejected with 409", status == http.StatusConflict)
	t.check("reason is duplicate_phone", rejectionReason(body) == "duplicate_phone")

	status, body, _ = book("E2E Patient Two", uniquePhone(3), "07:20 PM")
	t.check("same name rejected with 409", status == http.StatusConflict)
	t.check("reason is duplicate_name", rejectionReason(body) == "duplicate_name")

	status, body, _ = book("E2E Patient Four", uniquePhone(4), "07:10 PM")
	t.check("taken slot rejected with 409", status == http.StatusConflict)
	t.check("reason is slot_taken", rejectionReason(body) == "slot_taken")
}

func leaveDayClosure(t *T) {
	status, _, err := adminDo(http.MethodPost, "/admin/leaves", map[string]string{
		"date":    bookingDate,
		"message": "E2E leave window",
	})
	if err != nil || status != http.StatusCreated {
		t.fatalf("set leave failed: status=%d err=%v", status, err)
		return
	}
	defer adminDo(http.MethodDelete, "/admin/leaves/"+bookingDate, nil)

	bookStatus, body, _ := book("E2E Patient Five", uniquePhone(5), "07:30 PM")
	t.check("leave-day booking rejected with 409", bookStatus == http.StatusConflict)
	t.check("reason is doctor_unavailable", rejectionReason(body) == "doctor_unavailable")
}

func queueProjection(t *T) {
	resp, err := http.Get(apiBase + "/queue")
	if err != nil {
		t.fatalf("queue: %v", err)
		return
	}
	defer resp.Body.Close()
	t.check("queue endpoint returns 200", resp.StatusCode == http.StatusOK)

	var snapshot map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.fatalf("decode queue snapshot: %v", err)
		return
	}
	_, hasEntries := snapshot["entries"]
	t.check("snapshot has entries", hasEntries)
}

func appointmentLifecycle(t *T) {
	phone := uniquePhone(6)
	status, appt, err := book("E2E Patient Six", phone, "07:40 PM")
	if err != nil || status != http.StatusCreated {
		t.fatalf("seed booking failed: status=%d err=%v", status, err)
		return
	}
	id, _ := appt["id"].(string)

	status, _, _ = adminDo(http.MethodPost, "/admin/appointments/"+id+"/status",
		map[string]string{"status": "In Progress"})
	t.check("advance to In Progress", status == http.StatusOK)

	status, _, _ = adminDo(http.MethodPost, "/admin/appointments/"+id+"/cancel", nil)
	t.check("cancel succeeds", status == http.StatusOK)

	status, _, _ = adminDo(http.MethodPost, "/admin/appointments/"+id+"/cancel", nil)
	t.check("second cancel rejected", status == http.StatusConflict)
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}
	if err := login(); err != nil {
		fmt.Printf("admin login failed: %v\n", err)
		os.Exit(1)
	}

	scenarios := []scenario{
		{"happy-path", happyPath},
		{"duplicate-rejections", duplicateRejections},
		{"leave-day-closure", leaveDayClosure},
		{"queue-projection", queueProjection},
		{"appointment-lifecycle", appointmentLifecycle},
	}

	only := ""
	if len(os.Args) > 1 {
		only = os.Args[1]
	}

	totalPassed, totalFailed := 0, 0
	for _, sc := range scenarios {
		if only != "" && sc.Name != only {
			continue
		}
		fmt.Printf("=== %s (date %s)\n", sc.Name, bookingDate)
		t := &T{name: sc.Name}
		sc.Fn(t)
		totalPassed += t.passed
		totalFailed += t.failed
	}

	fmt.Printf("\n%d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
