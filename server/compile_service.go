package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/paxy/compiler"
	"github.com/chazu/paxy/vm"
)

const (
	// ServiceName is the fully-qualified name of the compiler service.
	ServiceName = "paxy.v1.CompilerService"

	// CompileProcedure is the path of the Compile method.
	CompileProcedure = "/" + ServiceName + "/Compile"
	// RunProcedure is the path of the Run method.
	RunProcedure = "/" + ServiceName + "/Run"

	// moduleName names programs submitted as text.
	moduleName = "main"
)

// CompileService compiles and runs programs submitted as source text. It
// is transport-neutral; the Connect and gRPC adapters share it.
type CompileService struct {
	workers  *Workers
	store    compiler.UnitCache
	timeout  time.Duration
	maxDepth int
}

// NewCompileService creates a CompileService that runs programs on workers.
func NewCompileService(workers *Workers, store compiler.UnitCache, timeout time.Duration) *CompileService {
	return &CompileService{
		workers:  workers,
		store:    store,
		timeout:  timeout,
		maxDepth: vm.DefaultMaxDepth,
	}
}

// RunResult is the outcome of running a program. A program that fails at
// run time still produces the output written before the failure.
type RunResult struct {
	Stdout string
	Err    *vm.RuntimeError
}

// Compile compiles source and returns the encoded unit. Units are looked up
// in and added to the store when one is configured.
func (s *CompileService) Compile(ctx context.Context, source string) ([]byte, error) {
	hash := vm.SourceHash([]byte(source))
	if s.store != nil {
		data, ok, err := s.store.Get(ctx, hash)
		if err != nil {
			log.Warningf("unit store lookup: %v", err)
		} else if ok {
			log.Debugf("compile: stored unit %s", hash[:12])
			return data, nil
		}
	}

	code, err := compiler.CompileString(moduleName, source, compiler.Options{})
	if err != nil {
		return nil, err
	}
	u := vm.NewUnit(code, []byte(source), time.Now())
	u.Flags |= vm.FlagHashBased
	data, err := vm.MarshalUnit(u)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.Put(ctx, hash, moduleName, data); err != nil {
			log.Warningf("unit store update: %v", err)
		}
	}
	return data, nil
}

// Run compiles source and executes it with stdin as its input. Compile
// errors and interruptions are returned as errors; runtime failures of the
// program are reported in the result.
func (s *CompileService) Run(ctx context.Context, source, stdin string) (*RunResult, error) {
	code, err := compiler.CompileString(moduleName, source, compiler.Options{})
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	value, err := s.workers.Do(ctx, func() (interface{}, error) {
		var out bytes.Buffer
		machine := vm.NewVM(
			vm.WithStdout(&out),
			vm.WithStdin(strings.NewReader(stdin)),
			vm.WithMaxDepth(s.maxDepth),
		)
		_, runErr := machine.Run(ctx, code)
		return &RunResult{Stdout: out.String()}, runErr
	})
	if err != nil {
		var rerr *vm.RuntimeError
		if !errors.As(err, &rerr) || ctx.Err() != nil {
			// interruptions and worker failures end the request
			return nil, err
		}
		result, _ := value.(*RunResult)
		if result == nil {
			result = &RunResult{}
		}
		result.Err = rerr
		return result, nil
	}
	return value.(*RunResult), nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

func (s *CompileService) compileMessage(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	data, err := s.Compile(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(data), nil
}

func (s *CompileService) runMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	src, ok := fields["source"]
	if !ok {
		return nil, errMissingSource
	}
	result, err := s.Run(ctx, src.GetStringValue(), fields["stdin"].GetStringValue())
	if err != nil {
		return nil, err
	}
	return runResultStruct(result)
}

var errMissingSource = errors.New("source is required")

func runResultStruct(r *RunResult) (*structpb.Struct, error) {
	m := map[string]interface{}{"stdout": r.Stdout}
	if r.Err != nil {
		m["error"] = r.Err.Error()
		m["kind"] = r.Err.Kind
		m["line"] = r.Err.Line
	}
	return structpb.NewStruct(m)
}

// ---------------------------------------------------------------------------
// Connect
// ---------------------------------------------------------------------------

// NewConnectHandler builds an HTTP handler serving the compiler service
// over the Connect, gRPC-Web and gRPC protocols. It returns the path to
// mount the handler on.
func NewConnectHandler(svc *CompileService, opts ...connect.HandlerOption) (string, http.Handler) {
	compileHandler := connect.NewUnaryHandler(
		CompileProcedure,
		func(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.BytesValue], error) {
			resp, err := svc.compileMessage(ctx, req.Msg)
			if err != nil {
				return nil, connectError(err)
			}
			return connect.NewResponse(resp), nil
		},
		opts...,
	)
	runHandler := connect.NewUnaryHandler(
		RunProcedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			resp, err := svc.runMessage(ctx, req.Msg)
			if err != nil {
				return nil, connectError(err)
			}
			return connect.NewResponse(resp), nil
		},
		opts...,
	)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case CompileProcedure:
			compileHandler.ServeHTTP(w, r)
		case RunProcedure:
			runHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// connectError maps service errors to Connect codes.
func connectError(err error) error {
	return connect.NewError(connect.Code(errorCode(err)), err)
}

// errorCode classifies err with the codes shared by Connect and gRPC.
func errorCode(err error) uint32 {
	var internal *compiler.InternalError
	switch {
	case errors.Is(err, errMissingSource):
		return uint32(connect.CodeInvalidArgument)
	case errors.As(err, &internal):
		return uint32(connect.CodeInternal)
	case isCompileError(err):
		return uint32(connect.CodeInvalidArgument)
	case errors.Is(err, context.DeadlineExceeded):
		return uint32(connect.CodeDeadlineExceeded)
	case errors.Is(err, context.Canceled):
		return uint32(connect.CodeCanceled)
	case errors.Is(err, errStopped):
		return uint32(connect.CodeUnavailable)
	}
	return uint32(connect.CodeInternal)
}

func isCompileError(err error) bool {
	_, ok := compiler.AsCompileError(err)
	return ok
}

// String renders a result for logs.
func (r *RunResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%d bytes of output, %s", len(r.Stdout), r.Err.Kind)
	}
	return fmt.Sprintf("%d bytes of output", len(r.Stdout))
}
