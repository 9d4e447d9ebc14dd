package rpc

import (
	"net/http"

	"habitledger/native/habits"
)

func (s *Server) handleContestStatusAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	status, err := s.ledger.ContestStatusAdmin(r.Context(), caller, date)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, ContestStatusAdminResult{
		Date:                  date,
		Registered:            status.Registered,
		Completed:             status.Completed,
		OperationFeeWithdrawn: status.OperationFeeWithdrawn,
	})
}

func (s *Server) handleUsersForDate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	users, err := s.ledger.UsersForDate(r.Context(), caller, date)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := UsersResult{Date: date, Users: make([]string, 0, len(users))}
	for _, user := range users {
		out.Users = append(out.Users, formatAddress(user))
	}
	writeResult(w, http.StatusOK, out)
}

func (s *Server) handleDatesForUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	user, ok := addrParam(w, r)
	if !ok {
		return
	}
	dates, err := s.ledger.DatesForUser(r.Context(), caller, user)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, UserDatesResult{User: formatAddress(user), Dates: nonNilDates(dates)})
}

func (s *Server) handleEntryStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	user, ok := addrParam(w, r)
	if !ok {
		return
	}
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	status, err := s.ledger.EntryStatus(r.Context(), caller, user, date)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, EntryStatusResult{User: formatAddress(user), Date: date, Status: status.String()})
}

func (s *Server) handleWithdrawableFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	dates, amount, err := s.ledger.WithdrawableOperationFees(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, WithdrawableResult{Dates: nonNilDates(dates), Amount: formatAmount(amount)})
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req FeeWithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.All && len(req.Dates) > 0 {
		writeError(w, http.StatusBadRequest, codeInvalidParams, "dates and all are mutually exclusive", nil)
		return
	}
	if req.All {
		result, err := s.ledger.SweepOperationFees(r.Context(), caller)
		if err != nil {
			s.logFailure(r, "sweep_operation_fees", caller, err)
			writeLedgerError(w, err)
			return
		}
		writeResult(w, http.StatusOK, settlementResult(result))
		return
	}
	result, err := s.ledger.WithdrawOperationFees(r.Context(), caller, req.Dates)
	if err != nil {
		s.logFailure(r, "withdraw_operation_fees", caller, err)
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, settlementResult(result))
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req AdminRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.ledger.AddAdmin(r.Context(), caller, addr); err != nil {
		s.logFailure(r, "add_admin", caller, err)
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, AdminResult{Address: formatAddress(addr), Admin: true})
}

func (s *Server) handleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	addr, ok := addrParam(w, r)
	if !ok {
		return
	}
	if err := s.ledger.RemoveAdmin(r.Context(), caller, addr); err != nil {
		s.logFailure(r, "remove_admin", caller, err)
		writeLedgerError(w, err)
		return
	}
	admin, err := s.ledger.IsAdmin(r.Context(), addr)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeResult(w, http.StatusOK, AdminResult{Address: formatAddress(addr), Admin: admin})
}

func (s *Server) handleSweeperStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	admin, err := s.ledger.IsAdmin(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if !admin {
		writeLedgerError(w, habits.ErrNotAuthorized)
		return
	}
	out := SweeperResult{LastDates: []int64{}, LastAmount: "0", TotalSwept: "0"}
	if s.sweeper != nil {
		last, at, total := s.sweeper.Status()
		out.Enabled = true
		out.TotalSwept = formatAmount(total)
		if last != nil {
			out.LastRunAt = at.Unix()
			out.LastDates = nonNilDates(last.Dates)
			out.LastAmount = formatAmount(last.Amount)
		}
	}
	writeResult(w, http.StatusOK, out)
}
