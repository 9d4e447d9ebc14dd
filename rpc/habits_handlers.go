package rpc

import (
	"log/slog"
	"net/http"

	"habitledger/observability/logging"
)

func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, http.StatusOK, paramsResult(s.ledger.Params(), s.ledger.Now()))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
		return
	}
	reg, err := s.ledger.Register(r.Context(), caller, req.StartDate, amount)
	if err != nil {
		s.logFailure(r, "register", caller, err)
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusCreated, registrationResult(reg))
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	date, err := s.ledger.CheckIn(r.Context(), caller)
	if err != nil {
		s.logFailure(r, "checkin", caller, err)
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, CheckInResult{User: formatAddress(caller), Date: date})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req DatesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	settlement, err := s.ledger.Withdraw(r.Context(), caller, req.Dates)
	if err != nil {
		s.logFailure(r, "withdraw", caller, err)
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, settlementResult(settlement))
}

func (s *Server) handleStartDate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	start, err := s.ledger.ExpectedStartDate(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	last, err := s.ledger.LastRegisteredDate(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, StartDateResult{StartDate: start, LastRegisteredDate: last})
}

func (s *Server) handleWithdrawable(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	dates, amount, err := s.ledger.Withdrawable(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, WithdrawableResult{Dates: nonNilDates(dates), Amount: formatAmount(amount)})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	statuses, err := s.ledger.UserEntryStatuses(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]EntryResult, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, EntryResult{Date: st.Date, Status: st.Status.String()})
	}
	writeResult(w, http.StatusOK, out)
}

func (s *Server) handleContestStatus(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	status, err := s.ledger.ContestStatus(r.Context(), date)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, ContestStatusResult{
		Date:       date,
		Registered: status.Registered,
		Completed:  status.Completed,
		Bonus:      formatAmount(status.Bonus),
	})
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	summary, err := s.ledger.Vault(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, vaultResult(caller, summary))
}

func (s *Server) logFailure(r *http.Request, op string, caller [20]byte, err error) {
	s.logger.Warn("ledger call rejected",
		slog.String("operation", op),
		logging.AddressField("caller", formatAddress(caller), s.redact),
		slog.String("request_id", requestIDFrom(r)),
		slog.Any("error", err))
}
