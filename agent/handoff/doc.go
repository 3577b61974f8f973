// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handoff 定义应答者（Responder）契约与应答者之间的转交协议。

# 概述

路由器只依赖本包的契约：每个应答者声明名称与能力（关键词提示），
并实现 Step：给定问题与链上下文，要么直接回答（Answered），
要么请求把控制权转交给另一个应答者（HandoffTo）。

# 核心模型

  - Responder：Name / Capabilities / Step 三个方法
  - StepInput：会话 ID、问题、历史轮次（Exchange）、本轮已发生的转交链（Link）
  - StepResult：答案或转交请求（Request）二选一
  - TransferTool：把转交暴露为模型可调用的工具，名称形如 transfer_to_search_responder
  - Registry：应答者注册表，Classify 按关键词为问题打分，
    平局或无命中时不给出结果，由路由器回退到上一个活跃应答者

转交请求只会折叠进轮次的步骤链，从不单独持久化。
*/
package handoff
