package http

import (
	"net/http"

	"budgetplaner/internal/core"
	"budgetplaner/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.deps.Ledger.List(r.Context(), owner(r), ParseTransactionFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		NotFoundError().Write(w)
		return
	}
	t, err := s.deps.Ledger.Get(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var draft core.TransactionDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := s.deps.Ledger.Create(r.Context(), owner(r), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		NotFoundError().Write(w)
		return
	}
	var patch core.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := s.deps.Ledger.Update(r.Context(), owner(r), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		NotFoundError().Write(w)
		return
	}
	if err := s.deps.Ledger.Delete(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Accounts.List(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var draft core.AccountDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	a, err := s.deps.Accounts.Create(r.Context(), owner(r), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var patch core.AccountPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	a, err := s.deps.Accounts.Update(r.Context(), owner(r), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	removed, err := s.deps.Accounts.Delete(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removedTransactions": removed})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req services.TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	pair, err := s.deps.Accounts.Transfer(r.Context(), owner(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (s *Server) handleListAccountTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.deps.Accounts.ListTypes(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleCreateAccountType(w http.ResponseWriter, r *http.Request) {
	var t core.AccountType
	if err := decodeJSON(w, r, &t); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	created, err := s.deps.Accounts.CreateType(r.Context(), owner(r), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteAccountType(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Accounts.DeleteType(r.Context(), owner(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
