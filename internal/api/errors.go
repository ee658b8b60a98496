package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// RequestError - ответ API со статусом вне 2xx
type RequestError struct {
	Status  int
	Message string
	// NeedMore выставляется сервером при 402 на смене сервера
	NeedMore bool
}

func (e *RequestError) Error() string {
	return e.Message
}

// IsStatus проверяет, что err - RequestError с данным HTTP-статусом
func IsStatus(err error, status int) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == status
}

// IsPaymentRequired - сервер отказал из-за нехватки баланса
func IsPaymentRequired(err error) bool {
	return IsStatus(err, http.StatusPaymentRequired)
}

type errorBody struct {
	Error    string `json:"error"`
	NeedMore bool   `json:"need_more"`
}

func parseError(status int, body []byte) *RequestError {
	re := &RequestError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		re.Message = eb.Error
		re.NeedMore = eb.NeedMore
	}
	if re.Message == "" {
		re.Message = fmt.Sprintf("HTTP error %d", status)
	}
	return re
}
