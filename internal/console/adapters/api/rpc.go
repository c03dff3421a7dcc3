package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"adminconsole/internal/console/domain/failures"
	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/pkg/logger"
)

type call struct {
	procedure string
	input     any
	out       any
	mutation  bool
}

// Batch накапливает вызовы процедур и отправляет их одним запросом.
type Batch struct {
	client *Client
	tokens apiPorts.TokenSource
	calls  []call
}

type batchItem struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

type procedureError struct {
	Message string `json:"message"`
	Data    struct {
		Code       string `json:"code"`
		HTTPStatus int    `json:"httpStatus"`
	} `json:"data"`
}

// NewBatch создает пустой пакет вызовов от имени владельца tokens.
func (c *Client) NewBatch(tokens apiPorts.TokenSource) *Batch {
	return &Batch{client: c, tokens: tokens}
}

// Query добавляет в пакет вызов на чтение.
func (b *Batch) Query(procedure string, input, out any) *Batch {
	b.calls = append(b.calls, call{procedure: procedure, input: input, out: out})
	return b
}

// Mutation добавляет в пакет изменяющий вызов. Пакет с мутацией отправляется POST-запросом.
func (b *Batch) Mutation(procedure string, input, out any) *Batch {
	b.calls = append(b.calls, call{procedure: procedure, input: input, out: out, mutation: true})
	return b
}

// Len возвращает число вызовов в пакете.
func (b *Batch) Len() int {
	return len(b.calls)
}

// Call выполняет одиночный вызов процедуры на чтение.
func (c *Client) Call(ctx context.Context, tokens apiPorts.TokenSource, procedure string, input, out any) error {
	return c.NewBatch(tokens).Query(procedure, input, out).Do(ctx)
}

// Mutate выполняет одиночный изменяющий вызов процедуры.
func (c *Client) Mutate(ctx context.Context, tokens apiPorts.TokenSource, procedure string, input, out any) error {
	return c.NewBatch(tokens).Mutation(procedure, input, out).Do(ctx)
}

// Do отправляет пакет и раскладывает результаты по out каждого вызова.
// Ошибки отдельных вызовов объединяются через errors.Join.
func (b *Batch) Do(ctx context.Context) error {
	if len(b.calls) == 0 {
		return nil
	}
	c := b.client
	log := logger.Log(ctx).With(zap.String("method", LogMethodBatch))

	procedures := make([]string, len(b.calls))
	inputs := make(map[string]json.RawMessage, len(b.calls))
	method := http.MethodGet
	for i, cl := range b.calls {
		procedures[i] = url.PathEscape(cl.procedure)
		encoded, err := c.transformer.Serialize(cl.input)
		if err != nil {
			return fmt.Errorf("%s: %w", ErrorFailedToEncode, err)
		}
		inputs[strconv.Itoa(i)] = encoded
		if cl.mutation {
			method = http.MethodPost
		}
	}

	endpoint := c.cfg.Endpoint(c.cfg.RPCPath+"/"+strings.Join(procedures, ",")) + "?batch=1"

	var payload any
	if method == http.MethodGet {
		query, err := json.Marshal(inputs)
		if err != nil {
			return fmt.Errorf("%s: %w", ErrorFailedToEncode, err)
		}
		endpoint += "&input=" + url.QueryEscape(string(query))
	} else {
		payload = inputs
	}

	req, err := c.newRequest(ctx, method, endpoint, payload, bearerToken(ctx, b.tokens))
	if err != nil {
		return err
	}

	log.Debug(ctx, LogMethodBatch, zap.Strings("procedures", procedures), zap.String("http_method", method))

	resp, err := c.send(ctx, LogMethodBatch, req)
	if err != nil {
		return err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(resp.body, &items); err != nil || len(items) != len(b.calls) {
		return b.failAll(resp)
	}

	errs := make([]error, 0, len(items))
	for i, raw := range items {
		errs = append(errs, b.decodeItem(b.calls[i], raw, resp.status))
	}
	return errors.Join(errs...)
}

// failAll формирует ошибку для ответа, который не является массивом результатов.
func (b *Batch) failAll(resp *response) error {
	if resp.ok() {
		return fmt.Errorf("%s: unexpected batch response", ErrorFailedToDecode)
	}

	message := failures.MessageFromBody(resp.body, failures.DefaultRequestMessage)
	errs := make([]error, len(b.calls))
	for i, cl := range b.calls {
		errs[i] = &failures.RemoteError{Procedure: cl.procedure, Status: resp.status, Message: message}
	}
	return errors.Join(errs...)
}

func (b *Batch) decodeItem(cl call, raw json.RawMessage, status int) error {
	var item batchItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return fmt.Errorf("%s: %s: %w", ErrorFailedToDecode, cl.procedure, err)
	}

	if len(item.Error) > 0 && string(item.Error) != "null" {
		var perr procedureError
		if err := b.client.transformer.Deserialize(item.Error, &perr); err != nil {
			perr.Message = failures.MessageFromBody(item.Error, failures.DefaultRequestMessage)
		}
		if perr.Message == "" {
			perr.Message = failures.DefaultRequestMessage
		}
		remoteStatus := perr.Data.HTTPStatus
		if remoteStatus == 0 {
			remoteStatus = status
		}
		return &failures.RemoteError{
			Procedure: cl.procedure,
			Status:    remoteStatus,
			Code:      perr.Data.Code,
			Message:   perr.Message,
		}
	}

	if item.Result == nil {
		return fmt.Errorf("%s: %s: missing result", ErrorFailedToDecode, cl.procedure)
	}
	if err := b.client.transformer.Deserialize(item.Result.Data, cl.out); err != nil {
		return fmt.Errorf("%s: %s: %w", ErrorFailedToDecode, cl.procedure, err)
	}
	return nil
}
