package alidns

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testAccessKeyID     = "testid"
	testAccessKeySecret = "testsecret"
)

// fakeCall is one request received by fakeAlidns.
type fakeCall struct {
	Action string
	Params url.Values
}

// fakeAlidns is an in-memory Alidns API that verifies request signatures.
// Keyword filters are case-insensitive substring matches, like the real API.
type fakeAlidns struct {
	t      *testing.T
	server *httptest.Server

	mu      sync.Mutex
	zones   []Domain
	records map[string][]DomainRecord
	nextID  int
	calls   []fakeCall

	// failWith, when set, can short-circuit a request with an API error.
	failWith func(action string, params url.Values) *apiErrorResponse
}

func newFakeAlidns(t *testing.T, zones ...string) *fakeAlidns {
	t.Helper()

	f := &fakeAlidns{
		t:       t,
		records: make(map[string][]DomainRecord),
		nextID:  1000,
	}
	for i, z := range zones {
		f.zones = append(f.zones, Domain{DomainID: strconv.Itoa(i + 1), DomainName: z})
	}

	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAlidns) client(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	return NewClient(Credentials{
		AccessKeyID:     testAccessKeyID,
		AccessKeySecret: testAccessKeySecret,
	}, append([]ClientOption{WithEndpoint(f.server.URL + "/")}, opts...)...)
}

func (f *fakeAlidns) addZone(d Domain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones = append(f.zones, d)
}

func (f *fakeAlidns) addRecord(zone string, r DomainRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.RecordID == "" {
		f.nextID++
		r.RecordID = strconv.Itoa(f.nextID)
	}
	r.DomainName = zone
	f.records[zone] = append(f.records[zone], r)
}

func (f *fakeAlidns) recordsOf(zone string) []DomainRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DomainRecord(nil), f.records[zone]...)
}

func (f *fakeAlidns) callsTo(action string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAlidns) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		f.t.Errorf("unexpected method: %s", r.Method)
	}

	q := r.URL.Query()
	action := q.Get("Action")

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Action: action, Params: q})
	f.mu.Unlock()

	for key, want := range map[string]string{
		"Format":           ResponseFormat,
		"Version":          APIVersion,
		"SignatureMethod":  SignatureMethod,
		"SignatureVersion": SignatureVersion,
	} {
		if got := q.Get(key); got != want {
			f.t.Errorf("%s: expected %s=%s, got %q", action, key, want, got)
		}
	}
	if _, err := time.Parse(TimestampLayout, q.Get("Timestamp")); err != nil {
		f.t.Errorf("%s: bad Timestamp %q: %v", action, q.Get("Timestamp"), err)
	}
	if q.Get("SignatureNonce") == "" {
		f.t.Errorf("%s: missing SignatureNonce", action)
	}

	if q.Get("AccessKeyId") != testAccessKeyID {
		f.fail(w, "InvalidAccessKeyId.NotFound", "Specified access key is not found.")
		return
	}
	if want := Signature(testAccessKeySecret, StringToSign(q)); q.Get("Signature") != want {
		f.fail(w, "SignatureDoesNotMatch", "Specified signature is not matched with our calculation.")
		return
	}

	if f.failWith != nil {
		if resp := f.failWith(action, q); resp != nil {
			if resp.RequestID == "" {
				resp.RequestID = "FAKE-REQUEST-ID"
			}
			f.write(w, http.StatusBadRequest, resp)
			return
		}
	}

	switch action {
	case ActionDescribeDomains:
		f.describeDomains(w, q)
	case ActionDescribeDomainRecords:
		f.describeDomainRecords(w, q)
	case ActionAddDomainRecord:
		f.addDomainRecord(w, q)
	case ActionDeleteDomainRecord:
		f.deleteDomainRecord(w, q)
	default:
		f.fail(w, "InvalidAction.NotFound", "Specified api is not found, please check your url and method.")
	}
}

func (f *fakeAlidns) describeDomains(w http.ResponseWriter, q url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keyword := q.Get("KeyWord")
	var matched []Domain
	for _, d := range f.zones {
		if containsFold(d.DomainName, keyword) || (d.PunyCode != "" && containsFold(d.PunyCode, keyword)) {
			matched = append(matched, d)
		}
	}

	var resp describeDomainsResponse
	resp.TotalCount = len(matched)
	start, end := page(q, len(matched))
	resp.Domains.Domain = matched[start:end]
	f.write(w, http.StatusOK, resp)
}

// page returns the slice bounds selected by PageSize and PageNumber.
// Without PageSize every item is returned.
func page(q url.Values, total int) (int, int) {
	size, err := strconv.Atoi(q.Get("PageSize"))
	if err != nil || size < 1 {
		return 0, total
	}
	number, err := strconv.Atoi(q.Get("PageNumber"))
	if err != nil || number < 1 {
		number = 1
	}

	start := min((number-1)*size, total)
	return start, min(start+size, total)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (f *fakeAlidns) hasZone(name string) bool {
	for _, d := range f.zones {
		if d.DomainName == name {
			return true
		}
	}
	return false
}

func (f *fakeAlidns) describeDomainRecords(w http.ResponseWriter, q url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()

	zone := q.Get("DomainName")
	if !f.hasZone(zone) {
		f.fail(w, "InvalidDomainName.NoExist", "The specified domain name does not exist.")
		return
	}

	var matched []DomainRecord
	for _, r := range f.records[zone] {
		if !containsFold(r.RR, q.Get("RRKeyWord")) || !containsFold(r.Type, q.Get("TypeKeyWord")) {
			continue
		}
		matched = append(matched, r)
	}

	var resp describeDomainRecordsResponse
	resp.TotalCount = len(matched)
	start, end := page(q, len(matched))
	resp.DomainRecords.Record = matched[start:end]
	f.write(w, http.StatusOK, resp)
}

func (f *fakeAlidns) addDomainRecord(w http.ResponseWriter, q url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()

	zone := q.Get("DomainName")
	if !f.hasZone(zone) {
		f.fail(w, "InvalidDomainName.NoExist", "The specified domain name does not exist.")
		return
	}

	ttl, err := strconv.Atoi(q.Get("TTL"))
	if err != nil {
		f.fail(w, "InvalidTTL", "The specified TTL is invalid.")
		return
	}

	for _, r := range f.records[zone] {
		if r.RR == q.Get("RR") && r.Type == q.Get("Type") && r.Value == q.Get("Value") {
			f.fail(w, "DomainRecordDuplicate", "The DNS record already exists.")
			return
		}
	}

	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.records[zone] = append(f.records[zone], DomainRecord{
		RecordID:   id,
		RR:         q.Get("RR"),
		Type:       q.Get("Type"),
		Value:      q.Get("Value"),
		TTL:        ttl,
		DomainName: zone,
		Status:     "ENABLE",
	})
	f.write(w, http.StatusOK, recordIDResponse{RequestID: "FAKE-REQUEST-ID", RecordID: id})
}

func (f *fakeAlidns) deleteDomainRecord(w http.ResponseWriter, q url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := q.Get("RecordId")
	for zone, records := range f.records {
		for i, r := range records {
			if r.RecordID == id {
				f.records[zone] = append(records[:i], records[i+1:]...)
				f.write(w, http.StatusOK, recordIDResponse{RequestID: "FAKE-REQUEST-ID", RecordID: id})
				return
			}
		}
	}
	f.fail(w, "DomainRecordNotBelongToUser", "The DNS record does not belong to the user.")
}

func (f *fakeAlidns) fail(w http.ResponseWriter, code, message string) {
	f.write(w, http.StatusBadRequest, apiErrorResponse{
		RequestID: "FAKE-REQUEST-ID",
		Code:      code,
		Message:   message,
	})
}

func (f *fakeAlidns) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		f.t.Errorf("encoding response: %v", err)
	}
}
