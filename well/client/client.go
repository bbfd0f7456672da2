package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/pkg/errors"
)

//Client facilitates communication with the well server
type Client struct {
	ep   *url.URL
	http *http.Client
}

//NewClient sets up an HTTP client that communicates with the server
func NewClient(endpoint string) (c *Client, err error) {
	c = &Client{
		http: http.DefaultClient,
	}
	c.ep, err = url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse provided API endpoint")
	}

	return c, nil
}

func (c *Client) doRequest(in interface{}, out interface{}) (err error) {
	loc := *c.ep
	method := "POST"
	switch in.(type) {
	case *AllocateTokensInput:
		loc.Path = path.Join(loc.Path, "AllocateTokens")
	case *GetSupplyInput:
		loc.Path = path.Join(loc.Path, "Supply")
		method = "GET"
	default:
		return errors.Errorf("no known endpoint for %T", in)
	}

	var reqBody io.Reader
	if method == "POST" {
		buf := bytes.NewBuffer(nil)
		enc := json.NewEncoder(buf)
		err = enc.Encode(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode request input")
		}

		reqBody = buf
	}

	req, err := http.NewRequest(method, loc.String(), reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute HTTP request")
	}

	defer resp.Body.Close()
	respBody := bytes.NewBuffer(nil)
	tr := io.TeeReader(resp.Body, respBody)
	dec := json.NewDecoder(tr)
	err = dec.Decode(out)
	if err != nil {
		return errors.Wrapf(err, "unable to decode response body: '%s'", respBody.String())
	}

	if resp.StatusCode > 399 {
		return errors.Errorf("unexpected response code '%d' from server, url: '%s' response: '%s'", resp.StatusCode, loc.String(), respBody.String())
	}

	return nil
}

//AllocateTokens draws the requested number of unique tokens from the pool
func (c *Client) AllocateTokens(in *AllocateTokensInput) (out *AllocateTokensOutput, err error) {
	out = &AllocateTokensOutput{}
	err = c.doRequest(in, out)
	if err != nil {
		return nil, errors.Wrap(err, "failed to do HTTP request")
	}

	return out, nil
}

//GetSupply reports how many tokens are left in the pool
func (c *Client) GetSupply(in *GetSupplyInput) (out *GetSupplyOutput, err error) {
	out = &GetSupplyOutput{}
	err = c.doRequest(in, out)
	if err != nil {
		return nil, errors.Wrap(err, "failed to do HTTP request")
	}

	return out, nil
}
