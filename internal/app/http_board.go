package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, r *http.Request, session Session) {
	boards, err := s.service.ListBoards(r.Context(), session.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentBoards(boards))
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body CreateBoardInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.CreateBoard(r.Context(), session.UserID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Board created successfully", presentBoard(board))
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request, session Session) {
	detail, err := s.service.GetBoard(r.Context(), session.UserID, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentBoardDetail(detail))
}

func (s *HTTPServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body UpdateBoardInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.UpdateBoard(r.Context(), session.UserID, mux.Vars(r)["id"], body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Board updated successfully", presentBoard(board))
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteBoard(r.Context(), session.UserID, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Board deleted successfully", nil)
}

// handleExportBoard answers with a download link when the snapshot went to
// object storage and with the file itself otherwise.
func (s *HTTPServer) handleExportBoard(w http.ResponseWriter, r *http.Request, session Session) {
	result, err := s.service.ExportBoard(r.Context(), session.UserID, mux.Vars(r)["id"], r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if result.URL != "" {
		writeData(w, http.StatusOK, "Board exported", map[string]any{
			"key":       result.Key,
			"url":       result.URL,
			"filename":  result.Filename,
			"mimeType":  result.MimeType,
			"expiresAt": result.Expires.UTC().Format(time.RFC3339),
		})
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleListLists(w http.ResponseWriter, r *http.Request, session Session) {
	lists, err := s.service.ListLists(r.Context(), session.UserID, r.URL.Query().Get("boardId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentLists(lists))
}

func (s *HTTPServer) handleCreateList(w http.ResponseWriter, r *http.Request, session Session) {
	var body CreateListInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	list, err := s.service.CreateList(r.Context(), session.UserID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "List created successfully", presentList(list))
}

func (s *HTTPServer) handleUpdateList(w http.ResponseWriter, r *http.Request, session Session) {
	var body UpdateListInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	list, err := s.service.UpdateList(r.Context(), session.UserID, mux.Vars(r)["id"], body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "List updated successfully", presentList(list))
}

func (s *HTTPServer) handleDeleteList(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteList(r.Context(), session.UserID, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "List deleted successfully", nil)
}

func (s *HTTPServer) handleMoveList(w http.ResponseWriter, r *http.Request, session Session) {
	var body MoveListInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	lists, err := s.service.MoveList(r.Context(), session.UserID, mux.Vars(r)["id"], body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "List moved successfully", presentLists(lists))
}

func (s *HTTPServer) handleListCards(w http.ResponseWriter, r *http.Request, session Session) {
	cards, err := s.service.ListCards(r.Context(), session.UserID, r.URL.Query().Get("listId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentCards(cards))
}

func (s *HTTPServer) handleGetCard(w http.ResponseWriter, r *http.Request, session Session) {
	card, err := s.service.GetCard(r.Context(), session.UserID, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentCard(card))
}

func (s *HTTPServer) handleCreateCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body CreateCardInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	card, err := s.service.CreateCard(r.Context(), session.UserID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Card created successfully", presentCard(card))
}

func (s *HTTPServer) handleUpdateCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body UpdateCardInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	card, err := s.service.UpdateCard(r.Context(), session.UserID, mux.Vars(r)["id"], body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Card updated successfully", presentCard(card))
}

func (s *HTTPServer) handleDeleteCard(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteCard(r.Context(), session.UserID, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Card deleted successfully", nil)
}

func (s *HTTPServer) handleMoveCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body MoveCardInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	card, err := s.service.MoveCard(r.Context(), session.UserID, mux.Vars(r)["id"], body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Card moved successfully", presentCard(card))
}

func (s *HTTPServer) handleToggleCard(w http.ResponseWriter, r *http.Request, session Session) {
	card, err := s.service.ToggleCardComplete(r.Context(), session.UserID, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentCard(card))
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	query := r.URL.Query()
	response, err := s.service.Search(r.Context(), session.UserID, query.Get("q"), query.Get("boardId"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", response)
}
